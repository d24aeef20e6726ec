package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	ActionScheduledRefresh = "feeds.refresh.scheduled"
	ActionForcedRefresh    = "feeds.refresh.forced"

	TargetFeed  = "feed"
	TargetFeeds = "feeds"
)

type RequestContext struct {
	Actor     string `json:"actor,omitempty"`
	Source    string `json:"source"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Entry struct {
	ID             string         `json:"id"`
	Action         string         `json:"action"`
	TargetType     string         `json:"targetType"`
	TargetID       string         `json:"targetId,omitempty"`
	Details        any            `json:"details"`
	RequestContext RequestContext `json:"requestContext"`
	RecordedAt     time.Time      `json:"recordedAt"`
}

// Stamp fills the ID and timestamp if unset.
func (e Entry) Stamp(now time.Time) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = now.UTC()
	}
	return e
}

type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// SlogLogger writes audit entries as structured log lines.
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger.With("component", "audit")}
}

func (l *SlogLogger) Log(ctx context.Context, entry Entry) error {
	entry = entry.Stamp(time.Now())
	l.logger.InfoContext(ctx, "Audit entry",
		"id", entry.ID,
		"action", entry.Action,
		"target_type", entry.TargetType,
		"target_id", entry.TargetID,
		"actor", entry.RequestContext.Actor,
		"source", entry.RequestContext.Source,
		"details", entry.Details)
	return nil
}

// Multi fans an entry out to every logger and joins their errors.
type Multi []Logger

func (m Multi) Log(ctx context.Context, entry Entry) error {
	entry = entry.Stamp(time.Now())
	var errs []error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.Log(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
