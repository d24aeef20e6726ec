package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-pulse/app/database"
)

const (
	DefaultRefreshInterval = 15 * time.Minute
	DefaultRetryInterval   = 5 * time.Minute
)

type Policy struct {
	DefaultInterval time.Duration
	RetryInterval   time.Duration
	// MaxConsecutiveFailures moves a feed to ERROR once its failure streak
	// reaches it. Zero keeps failing feeds ACTIVE.
	MaxConsecutiveFailures int
}

type Scheduler struct {
	feeds  FeedStore
	policy Policy
}

func NewScheduler(feeds FeedStore, policy Policy) *Scheduler {
	if policy.DefaultInterval <= 0 {
		policy.DefaultInterval = DefaultRefreshInterval
	}
	if policy.RetryInterval <= 0 {
		policy.RetryInterval = DefaultRetryInterval
	}
	return &Scheduler{feeds: feeds, policy: policy}
}

func (s *Scheduler) Policy() Policy {
	return s.policy
}

// SelectDue returns ACTIVE feeds whose next fetch time is unset or not after now.
func (s *Scheduler) SelectDue(ctx context.Context, now time.Time) ([]database.Feed, error) {
	feeds, err := s.feeds.FindFeedsDueForRefresh(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select due feeds: %w", err)
	}
	slog.Debug("Due feeds selected", "count", len(feeds), "now", now)
	return feeds, nil
}

func (s *Scheduler) Cadence(f *database.Feed) time.Duration {
	if interval := f.RefreshInterval(); interval > 0 {
		return interval
	}
	return s.policy.DefaultInterval
}

func (s *Scheduler) ComputeNextFetchAt(f *database.Feed, outcome Outcome, now time.Time) time.Time {
	cadence := s.Cadence(f)
	if outcome.Success {
		return now.Add(cadence)
	}
	return now.Add(min(s.policy.RetryInterval, cadence))
}

func (s *Scheduler) NextStatus(f *database.Feed, outcome Outcome) database.FeedStatus {
	switch {
	case f.Status == database.FeedStatusPaused:
		return database.FeedStatusPaused
	case outcome.Success:
		return database.FeedStatusActive
	case s.policy.MaxConsecutiveFailures > 0 && f.ConsecutiveFailures+1 >= s.policy.MaxConsecutiveFailures:
		return database.FeedStatusError
	default:
		return database.FeedStatusActive
	}
}

// Reschedule persists the scheduling consequences of an attempt made at now.
func (s *Scheduler) Reschedule(ctx context.Context, f *database.Feed, outcome Outcome, now time.Time) (database.ScheduleUpdate, error) {
	update := database.ScheduleUpdate{
		LastRefreshedAt: now,
		NextFetchAt:     s.ComputeNextFetchAt(f, outcome, now),
		Status:          s.NextStatus(f, outcome),
	}
	if !outcome.Success {
		update.LastError = outcome.Error
		update.ConsecutiveFailures = f.ConsecutiveFailures + 1
	}

	if err := s.feeds.UpdateFeedSchedule(ctx, f.ID, update); err != nil {
		return update, fmt.Errorf("%w: update schedule: %w", ErrPersistence, err)
	}

	if update.Status != f.Status {
		slog.Info("Feed status changed", "feed", f.Name, "from", f.Status, "to", update.Status, "failures", update.ConsecutiveFailures)
	}

	return update, nil
}
