package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/rss-pulse/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	defaultQueueSize   = 300
	defaultTaskTimeout = 5 * time.Minute
	maxRetryDelay      = 30 * time.Second
)

type Settings struct {
	// Interval between scheduled refresh batches. Zero disables the ticker.
	Interval    time.Duration
	WorkerCount int
	TaskTimeout time.Duration
}

type Scheduler struct {
	configCache    *feed.ConfigCache
	feedRepo       FeedUpserter
	runner         BatchRunner
	interval       time.Duration
	workerCount    int
	taskTimeout    time.Duration
	retryBaseDelay time.Duration
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	taskQueue      chan TaskInterface
	batchInFlight  atomic.Bool
	batches        atomic.Int64
	skipped        atomic.Int64
}

func NewScheduler(configCache *feed.ConfigCache, feedRepo FeedUpserter, runner BatchRunner, settings Settings) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if settings.WorkerCount <= 0 {
		settings.WorkerCount = 1
	}
	if settings.TaskTimeout <= 0 {
		settings.TaskTimeout = defaultTaskTimeout
	}

	return &Scheduler{
		configCache:    configCache,
		feedRepo:       feedRepo,
		runner:         runner,
		interval:       settings.Interval,
		workerCount:    settings.WorkerCount,
		taskTimeout:    settings.TaskTimeout,
		retryBaseDelay: time.Second,
		ctx:            ctx,
		cancel:         cancel,
		taskQueue:      make(chan TaskInterface, defaultQueueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.enqueueStartupTasks()

	if s.interval <= 0 {
		slog.Info("In-process refresh timer disabled, waiting for external cron")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueBatch()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueBatch()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) Stats() map[string]any {
	return map[string]any{
		"workers":          s.workerCount,
		"queue_length":     len(s.taskQueue),
		"interval_seconds": int(s.interval.Seconds()),
		"batch_in_flight":  s.batchInFlight.Load(),
		"batches_enqueued": s.batches.Load(),
		"batches_skipped":  s.skipped.Load(),
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	if s.configCache == nil {
		return
	}

	feedConfigs := s.configCache.GetConfigs()
	if len(feedConfigs) == 0 {
		slog.Debug("No feed configurations found")
		return
	}

	slog.Debug("Processing feed configurations", "count", len(feedConfigs))

	for _, feedConfig := range feedConfigs {
		syncTask := NewSyncFeedConfigTask(feedConfig.Name, feedConfig, s.feedRepo)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncFeedConfigTask", "feed", feedConfig.Name, "error", err)
		}
	}
}

// enqueueBatch adds a refresh batch unless the previous one has not finished.
func (s *Scheduler) enqueueBatch() bool {
	if !s.batchInFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		slog.Debug("Refresh batch still in flight, skipping tick")
		return false
	}

	if err := s.EnqueueTask(NewRefreshBatchTask(s.runner, &s.batchInFlight)); err != nil {
		s.batchInFlight.Store(false)
		slog.Warn("Failed to enqueue RefreshBatchTask", "error", err)
		return false
	}

	s.batches.Add(1)
	return true
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) retryDelay(retryCount int) time.Duration {
	delay := s.retryBaseDelay << uint(retryCount-1)
	return min(delay, maxRetryDelay)
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", append(task.LogAttrs(), "worker_id", workerID, "error", err)...)

	if !task.CanRetry() {
		if task.GetMaxRetries() > 0 {
			slog.Error("Task failed after maximum retries", append(task.LogAttrs(), "last_error", err)...)
		}
		return
	}

	task.IncrementRetryCount()
	delay := s.retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", append(task.LogAttrs(), "delay", delay.String())...)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", task.LogAttrs()...)
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", append(task.LogAttrs(), "error", retryErr)...)
			}
		}
	}()
}
