package tasks

import (
	"context"

	"github.com/lysyi3m/rss-pulse/app/audit"
	"github.com/lysyi3m/rss-pulse/app/refresh"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to sync feed configs on start and to run
// scheduled refresh batches when no external cron is configured.
// Example usage:
//
//	scheduler := NewScheduler(configCache, feedRepo, triggerService, Settings{Interval: time.Minute, WorkerCount: 2})
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	Stats() map[string]any
}

// BatchRunner runs one scheduled refresh over the due set.
type BatchRunner interface {
	RunScheduled(ctx context.Context, rc audit.RequestContext) (refresh.Summary, error)
}
