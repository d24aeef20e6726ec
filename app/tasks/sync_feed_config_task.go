package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-pulse/app/database"
	"github.com/lysyi3m/rss-pulse/app/feed"
)

type FeedUpserter interface {
	UpsertFeed(ctx context.Context, feedSync database.FeedSync) (string, error)
}

type SyncFeedConfigTask struct {
	Task
	FeedConfig *feed.Config
	feedRepo   FeedUpserter
}

func NewSyncFeedConfigTask(feedName string, feedConfig *feed.Config, feedRepo FeedUpserter) *SyncFeedConfigTask {
	return &SyncFeedConfigTask{
		Task:       NewTask(TaskTypeSyncFeedConfig, feedName),
		FeedConfig: feedConfig,
		feedRepo:   feedRepo,
	}
}

func (t *SyncFeedConfigTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	settings := t.FeedConfig.Settings
	id, err := t.feedRepo.UpsertFeed(ctx, database.FeedSync{
		Name:                   t.FeedConfig.Name,
		URL:                    t.FeedConfig.URL,
		Title:                  t.FeedConfig.Title,
		RefreshIntervalSeconds: settings.RefreshInterval,
		FetchTimeoutSeconds:    settings.Timeout,
		TranslationEnabled:     settings.Translate,
		Paused:                 !settings.IsEnabled(),
	})
	if err != nil {
		slog.Error("Task failed", "type", "SyncFeedConfig", "feed", t.Target, "error", err)
		return fmt.Errorf("failed to sync feed config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncFeedConfig",
		"feed", t.Target,
		"feed_id", id,
		"enabled", settings.IsEnabled(),
		"duration", t.GetDuration())

	return nil
}
