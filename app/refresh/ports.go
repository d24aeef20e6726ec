package refresh

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-pulse/app/database"
	"github.com/lysyi3m/rss-pulse/app/feed"
)

// FeedStore is the part of feed persistence the refresh core writes to.
type FeedStore interface {
	FindFeedsDueForRefresh(ctx context.Context, now time.Time) ([]database.Feed, error)
	UpdateFeedSchedule(ctx context.Context, id string, update database.ScheduleUpdate) error
	UpdateFeedMetadata(ctx context.Context, id string, metadata database.FeedMetadata) error
}

// ArticleStore must treat a conflicting (feed, key) insert as a no-op.
type ArticleStore interface {
	FindExistingArticleKeys(ctx context.Context, feedID string, keys []string) (map[string]struct{}, error)
	InsertArticles(ctx context.Context, feedID string, articles []database.NewArticle) (int, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, req feed.Request) (*feed.Result, error)
}

type Extractor interface {
	Extract(ctx context.Context, pageURL string, timeout time.Duration) (string, error)
}

type SettingsLookup interface {
	Lookup(feedName string) (*feed.Config, bool)
}

var (
	_ FeedStore      = (database.FeedRepository)(nil)
	_ ArticleStore   = (database.ArticleRepository)(nil)
	_ Fetcher        = (*feed.Fetcher)(nil)
	_ Extractor      = (*feed.ContentExtractor)(nil)
	_ SettingsLookup = (*feed.ConfigCache)(nil)
)
