package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/rss-pulse/app/audit"
	"github.com/lysyi3m/rss-pulse/app/database"
	"github.com/lysyi3m/rss-pulse/app/refresh"
)

var (
	ErrFeedNotFound   = errors.New("feed not found")
	ErrInvalidRequest = errors.New("either feed ids or all must be given")
)

type DueSelector interface {
	SelectDue(ctx context.Context, now time.Time) ([]database.Feed, error)
}

type Refresher interface {
	Refresh(ctx context.Context, feeds []database.Feed, opts refresh.Options) []refresh.Outcome
}

type FeedLookup interface {
	GetFeedsByIDs(ctx context.Context, ids []string) ([]database.Feed, error)
	FindRefreshableFeeds(ctx context.Context) ([]database.Feed, error)
}

type ForceRequest struct {
	FeedIDs []string
	All     bool
}

// Service is the entry point shared by the cron endpoint, the in-process
// ticker and the admin endpoints.
type Service struct {
	selector  DueSelector
	refresher Refresher
	feeds     FeedLookup
	audit     audit.Logger
	now       func() time.Time
}

func NewService(selector DueSelector, refresher Refresher, feeds FeedLookup, auditLogger audit.Logger) *Service {
	return &Service{
		selector:  selector,
		refresher: refresher,
		feeds:     feeds,
		audit:     auditLogger,
		now:       time.Now,
	}
}

// RunScheduled refreshes every due feed. Only a failing due query is returned
// as an error; per-feed failures are reported in the summary.
func (s *Service) RunScheduled(ctx context.Context, rc audit.RequestContext) (refresh.Summary, error) {
	startedAt := s.now()

	feeds, err := s.selector.SelectDue(ctx, startedAt)
	if err != nil {
		return refresh.Summary{}, err
	}

	// The batch outlives a caller that disconnects or times out; per-feed
	// fetch timeouts bound it instead.
	batchCtx := context.WithoutCancel(ctx)

	outcomes := s.refresher.Refresh(batchCtx, feeds, refresh.Options{})
	summary := refresh.Summarize(outcomes, startedAt, s.now().Sub(startedAt))

	slog.Info("Scheduled refresh finished",
		"feeds", summary.TotalFeeds,
		"succeeded", summary.SuccessfulRefreshes,
		"failed", summary.FailedRefreshes,
		"new_articles", summary.NewArticles,
		"source", rc.Source)

	s.record(batchCtx, audit.Entry{
		Action:         audit.ActionScheduledRefresh,
		TargetType:     audit.TargetFeeds,
		Details:        summary,
		RequestContext: rc,
	})

	return summary, nil
}

// RunForced refreshes the requested feeds regardless of their next fetch
// time. Explicit ids may name feeds in any status; All selects every feed
// that is not paused.
func (s *Service) RunForced(ctx context.Context, req ForceRequest, rc audit.RequestContext) (refresh.Summary, error) {
	startedAt := s.now()

	feeds, err := s.resolve(ctx, req)
	if err != nil {
		return refresh.Summary{}, err
	}

	batchCtx := context.WithoutCancel(ctx)

	outcomes := s.refresher.Refresh(batchCtx, feeds, refresh.Options{ForceRefresh: true})
	summary := refresh.Summarize(outcomes, startedAt, s.now().Sub(startedAt))

	slog.Info("Forced refresh finished",
		"feeds", summary.TotalFeeds,
		"succeeded", summary.SuccessfulRefreshes,
		"failed", summary.FailedRefreshes,
		"new_articles", summary.NewArticles,
		"actor", rc.Actor)

	entry := audit.Entry{
		Action:         audit.ActionForcedRefresh,
		TargetType:     audit.TargetFeeds,
		Details:        summary,
		RequestContext: rc,
	}
	if !req.All && len(feeds) == 1 {
		entry.TargetType = audit.TargetFeed
		entry.TargetID = feeds[0].ID
	}
	s.record(batchCtx, entry)

	return summary, nil
}

func (s *Service) resolve(ctx context.Context, req ForceRequest) ([]database.Feed, error) {
	if req.All {
		feeds, err := s.feeds.FindRefreshableFeeds(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list feeds: %w", err)
		}
		return feeds, nil
	}

	ids := make([]string, 0, len(req.FeedIDs))
	for _, id := range req.FeedIDs {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, ErrInvalidRequest
	}

	found, err := s.feeds.GetFeedsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load feeds: %w", err)
	}

	byID := make(map[string]database.Feed, len(found))
	for _, f := range found {
		byID[f.ID] = f
	}

	feeds := make([]database.Feed, 0, len(ids))
	var missing []string
	for _, id := range ids {
		f, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		feeds = append(feeds, f)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrFeedNotFound, strings.Join(missing, ", "))
	}

	return feeds, nil
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		slog.Warn("Failed to record audit entry", "action", entry.Action, "error", err)
	}
}
