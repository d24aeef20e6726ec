package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/lysyi3m/rss-pulse/app/audit"
)

type RefreshBatchTask struct {
	Task
	runner   BatchRunner
	inFlight *atomic.Bool
}

// NewRefreshBatchTask builds a batch that is never retried by the runner: the
// next tick is its retry, and a delayed retry would overlap with it.
func NewRefreshBatchTask(runner BatchRunner, inFlight *atomic.Bool) *RefreshBatchTask {
	task := NewTask(TaskTypeRefreshBatch, "due-feeds")
	task.MaxRetries = 0
	return &RefreshBatchTask{
		Task:     task,
		runner:   runner,
		inFlight: inFlight,
	}
}

func (t *RefreshBatchTask) Execute(ctx context.Context) error {
	if t.inFlight != nil {
		defer t.inFlight.Store(false)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	summary, err := t.runner.RunScheduled(ctx, audit.RequestContext{Source: "scheduler", RequestID: t.ID})
	if err != nil {
		return fmt.Errorf("failed to run refresh batch: %w", err)
	}

	slog.Info("Task completed",
		"type", "RefreshBatch",
		"feeds", summary.TotalFeeds,
		"failed", summary.FailedRefreshes,
		"new_articles", summary.NewArticles,
		"duration", t.GetDuration())

	return nil
}
