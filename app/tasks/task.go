package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeRefreshBatch   TaskType = "refresh_batch"
	TaskTypeSyncFeedConfig TaskType = "sync_feed_config"
)

const DefaultMaxRetries = 3

// TaskInterface is what the worker pool runs. Retry bookkeeping lives on the
// task so a re-enqueued task keeps its attempt count.
type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetTarget() string
	GetRetryCount() int
	GetMaxRetries() int
	IncrementRetryCount()
	CanRetry() bool
	Start()
	GetDuration() time.Duration
	LogAttrs() []any
}

type Task struct {
	ID   string
	Type TaskType
	// Target names what the task works on: a feed name for sync tasks, the
	// due set for refresh batches.
	Target     string
	RetryCount int
	MaxRetries int
	StartedAt  time.Time
}

func NewTask(taskType TaskType, target string) Task {
	return Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		Target:     target,
		MaxRetries: DefaultMaxRetries,
	}
}

func (t *Task) GetID() string { return t.ID }
func (t *Task) GetType() TaskType { return t.Type }
func (t *Task) GetTarget() string { return t.Target }
func (t *Task) GetRetryCount() int { return t.RetryCount }
func (t *Task) GetMaxRetries() int { return t.MaxRetries }
func (t *Task) IncrementRetryCount() { t.RetryCount++ }
func (t *Task) CanRetry() bool { return t.RetryCount < t.MaxRetries }
func (t *Task) Start() { t.StartedAt = time.Now() }

// GetDuration is the time since the current attempt started, zero before the
// first attempt.
func (t *Task) GetDuration() time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	return time.Since(t.StartedAt)
}

// LogAttrs returns the key/value pairs every task log line carries.
func (t *Task) LogAttrs() []any {
	return []any{
		"type", string(t.Type),
		"id", t.ID,
		"target", t.Target,
		"retry_count", t.RetryCount,
		"max_retries", t.MaxRetries,
	}
}
