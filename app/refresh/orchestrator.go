package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/rss-pulse/app/database"
	"github.com/lysyi3m/rss-pulse/app/feed"
)

const DefaultMaxInFlight = 5

type Options struct {
	// ForceRefresh drops the conditional GET validators so the body is always fetched.
	ForceRefresh bool
}

type Limits struct {
	MaxInFlight  int
	FetchTimeout time.Duration
}

type Orchestrator struct {
	scheduler *Scheduler
	feeds     FeedStore
	articles  ArticleStore
	fetcher   Fetcher
	settings  SettingsLookup
	extractor Extractor
	dedup     *feed.Deduplicator
	filterer  *feed.Filterer
	limits    Limits
	now       func() time.Time
}

func NewOrchestrator(
	scheduler *Scheduler,
	feeds FeedStore,
	articles ArticleStore,
	fetcher Fetcher,
	settings SettingsLookup,
	extractor Extractor,
	limits Limits,
) *Orchestrator {
	if limits.MaxInFlight <= 0 {
		limits.MaxInFlight = DefaultMaxInFlight
	}
	if limits.FetchTimeout <= 0 {
		limits.FetchTimeout = feed.DefaultTimeout
	}
	return &Orchestrator{
		scheduler: scheduler,
		feeds:     feeds,
		articles:  articles,
		fetcher:   fetcher,
		settings:  settings,
		extractor: extractor,
		dedup:     feed.NewDeduplicator(articles),
		filterer:  feed.NewFilterer(),
		limits:    limits,
		now:       time.Now,
	}
}

func (o *Orchestrator) Scheduler() *Scheduler {
	return o.scheduler
}

// Refresh runs one pipeline per feed on a bounded worker pool and returns the
// outcomes in input order. Per-feed failures never abort the batch.
func (o *Orchestrator) Refresh(ctx context.Context, feeds []database.Feed, opts Options) []Outcome {
	outcomes := make([]Outcome, len(feeds))
	if len(feeds) == 0 {
		return outcomes
	}

	workers := min(o.limits.MaxInFlight, len(feeds))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = o.refreshFeed(ctx, feeds[i], opts)
			}
		}()
	}

	for i := range feeds {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for _, outcome := range outcomes {
		if !outcome.Success {
			failed++
		}
	}
	slog.Info("Refresh batch completed", "feeds", len(feeds), "failed", failed, "force", opts.ForceRefresh)

	return outcomes
}
