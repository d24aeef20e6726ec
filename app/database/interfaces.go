package database

import (
	"context"
	"time"
)

type FeedRepository interface {
	GetFeed(ctx context.Context, id string) (*Feed, error)
	GetFeedByName(ctx context.Context, name string) (*Feed, error)
	GetFeedsByIDs(ctx context.Context, ids []string) ([]Feed, error)
	ListFeeds(ctx context.Context) ([]Feed, error)
	GetFeedCount(ctx context.Context) (int, error)

	FindFeedsDueForRefresh(ctx context.Context, now time.Time) ([]Feed, error)
	FindRefreshableFeeds(ctx context.Context) ([]Feed, error)

	UpsertFeed(ctx context.Context, feed FeedSync) (string, error)
	UpdateFeedMetadata(ctx context.Context, id string, metadata FeedMetadata) error
	UpdateFeedSchedule(ctx context.Context, id string, update ScheduleUpdate) error
}

type ArticleRepository interface {
	FindExistingArticleKeys(ctx context.Context, feedID string, keys []string) (map[string]struct{}, error)
	InsertArticles(ctx context.Context, feedID string, articles []NewArticle) (int, error)

	GetArticles(ctx context.Context, feedID string, limit int) ([]Article, error)
	GetArticleCount(ctx context.Context, feedID string) (int, error)
}

var (
	_ FeedRepository    = (*feedRepository)(nil)
	_ ArticleRepository = (*articleRepository)(nil)
)
