package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lysyi3m/rss-pulse/app/audit"
	"github.com/lysyi3m/rss-pulse/app/database"
	"github.com/lysyi3m/rss-pulse/app/feed"
	"github.com/lysyi3m/rss-pulse/app/refresh"
	"github.com/lysyi3m/rss-pulse/app/tasks"
	"github.com/lysyi3m/rss-pulse/app/trigger"
)

// ErrConfiguration is reported when an endpoint is reachable but the server
// lacks the setting it needs to authenticate callers.
var ErrConfiguration = errors.New("configuration error")

type RefreshTrigger interface {
	RunScheduled(ctx context.Context, rc audit.RequestContext) (refresh.Summary, error)
	RunForced(ctx context.Context, req trigger.ForceRequest, rc audit.RequestContext) (refresh.Summary, error)
}

var _ RefreshTrigger = (*trigger.Service)(nil)

type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]json.RawMessage, error)
	Health(ctx context.Context) map[string]any
}

var _ AuditReader = (*audit.RedisLogger)(nil)

type Handler struct {
	feedRepo    database.FeedRepository
	articleRepo database.ArticleRepository
	configCache *feed.ConfigCache
	trigger     RefreshTrigger
	scheduler   tasks.TaskSchedulerInterface
	auditReader AuditReader
	cronSecret  string
	version     string
}

type forceRefreshRequest struct {
	FeedIDs []string `json:"feedIds"`
	All     bool     `json:"all"`
}

type feedView struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	URL                 string     `json:"url"`
	Title               string     `json:"title"`
	Status              string     `json:"status"`
	RefreshInterval     string     `json:"refreshInterval,omitempty"`
	FetchTimeout        string     `json:"fetchTimeout,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	LastRefreshedAt     *time.Time `json:"lastRefreshedAt"`
	NextFetchAt         *time.Time `json:"nextFetchAt"`
	ArticleCount        *int       `json:"articleCount,omitempty"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

type articleView struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	Title       string     `json:"title"`
	Link        string     `json:"link,omitempty"`
	PublishedAt *time.Time `json:"publishedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func newFeedView(f database.Feed) feedView {
	v := feedView{
		ID:                  f.ID,
		Name:                f.Name,
		URL:                 f.URL,
		Title:               f.Title,
		Status:              string(f.Status),
		LastError:           f.LastError,
		ConsecutiveFailures: f.ConsecutiveFailures,
		LastRefreshedAt:     f.LastRefreshedAt,
		NextFetchAt:         f.NextFetchAt,
		UpdatedAt:           f.UpdatedAt,
	}
	if f.RefreshIntervalSeconds > 0 {
		v.RefreshInterval = f.RefreshInterval().String()
	}
	if f.FetchTimeoutSeconds > 0 {
		v.FetchTimeout = f.FetchTimeout().String()
	}
	return v
}

func newArticleView(a database.Article) articleView {
	return articleView{
		ID:          a.ID,
		Key:         a.NaturalKey,
		Title:       a.Title,
		Link:        a.Link,
		PublishedAt: a.PublishedAt,
		CreatedAt:   a.CreatedAt,
	}
}
