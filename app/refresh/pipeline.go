package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-pulse/app/database"
	"github.com/lysyi3m/rss-pulse/app/feed"
)

func (o *Orchestrator) refreshFeed(ctx context.Context, f database.Feed, opts Options) Outcome {
	start := time.Now()
	outcome := Outcome{FeedID: f.ID, FeedName: f.Name}

	if err := o.runPipeline(ctx, &f, opts, &outcome); err != nil {
		outcome.Error = err.Error()
		outcome.ErrorKind = ErrorKind(err)
		slog.Warn("Feed refresh failed", "feed", f.Name, "kind", outcome.ErrorKind, "error", err)
	} else {
		outcome.Success = true
	}

	// Scheduling state is written even when the caller has gone away, so a
	// feed is never left due at its old time.
	update, err := o.scheduler.Reschedule(context.WithoutCancel(ctx), &f, outcome, o.now())
	if err != nil {
		slog.Error("Failed to reschedule feed", "feed", f.Name, "error", err)
		if outcome.Success {
			outcome.Success = false
			outcome.Error = err.Error()
			outcome.ErrorKind = KindPersistence
		}
	} else {
		outcome.NextFetchAt = &update.NextFetchAt
	}

	outcome.Duration = Millis(time.Since(start))

	if outcome.Success {
		slog.Debug("Feed refreshed", "feed", f.Name, "new", outcome.NewArticles, "seen", outcome.EntriesSeen, "not_modified", outcome.NotModified, "duration", time.Duration(outcome.Duration))
	}

	return outcome
}

func (o *Orchestrator) runPipeline(ctx context.Context, f *database.Feed, opts Options, outcome *Outcome) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return o.ingest(ctx, f, opts, outcome)
}

func (o *Orchestrator) ingest(ctx context.Context, f *database.Feed, opts Options, outcome *Outcome) error {
	settings := o.lookupSettings(f.Name)
	timeout := o.fetchTimeout(f)

	req := feed.Request{URL: f.URL, Timeout: timeout}
	if !opts.ForceRefresh {
		req.ETag = f.ETag
		req.LastModified = f.LastModified
	}

	result, err := o.fetcher.Fetch(ctx, req)
	if err != nil {
		return err
	}

	// Once fetched, entries are persisted regardless of caller cancellation.
	storeCtx := context.WithoutCancel(ctx)

	if result.NotModified {
		outcome.NotModified = true
		return nil
	}

	entries := result.Entries
	outcome.EntriesSeen = len(entries)
	if settings != nil && settings.Settings.MaxItems > 0 && len(entries) > settings.Settings.MaxItems {
		entries = entries[:settings.Settings.MaxItems]
	}

	dedup, err := o.dedup.Run(storeCtx, f.ID, entries)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	outcome.Duplicates = dedup.Duplicates
	outcome.Invalid = dedup.Invalid
	if dedup.Invalid > 0 {
		slog.Warn("Skipped entries without a natural key", "feed", f.Name, "count", dedup.Invalid, "error", feed.ErrMissingKey)
	}

	fresh, filtered := o.filterer.Run(dedup.New, settings)
	outcome.Filtered = filtered

	articles := o.buildArticles(ctx, f, fresh, settings, timeout)

	inserted, err := o.articles.InsertArticles(storeCtx, f.ID, articles)
	if err != nil {
		return fmt.Errorf("%w: insert articles: %w", ErrPersistence, err)
	}
	outcome.NewArticles = inserted
	// Rows lost to a concurrent refresh of the same feed.
	outcome.Duplicates += len(articles) - inserted

	metadata := database.FeedMetadata{
		ETag:         result.ETag,
		LastModified: result.LastModified,
	}
	if result.Metadata != nil {
		metadata.Title = result.Metadata.Title
		metadata.Link = result.Metadata.Link
		metadata.Description = result.Metadata.Description
		metadata.ImageURL = result.Metadata.ImageURL
		metadata.Language = result.Metadata.Language
	}
	if err := o.feeds.UpdateFeedMetadata(storeCtx, f.ID, metadata); err != nil {
		return fmt.Errorf("%w: update metadata: %w", ErrPersistence, err)
	}

	return nil
}

// buildArticles fills missing content through the extractor. All extractions
// of one refresh share a single budget of one fetch timeout; entries left
// once it is spent keep their feed content.
func (o *Orchestrator) buildArticles(ctx context.Context, f *database.Feed, entries []feed.KeyedEntry, settings *feed.Config, timeout time.Duration) []database.NewArticle {
	extract := o.extractor != nil && settings != nil && settings.Settings.ExtractContent

	extractCtx := ctx
	if extract {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	skipped := 0
	articles := make([]database.NewArticle, 0, len(entries))
	for _, e := range entries {
		content := e.Entry.Content
		if extract && content == "" && e.Entry.Link != "" {
			if extractCtx.Err() != nil {
				skipped++
			} else if extracted, err := o.extractor.Extract(extractCtx, e.Entry.Link, timeout); err != nil {
				slog.Warn("Content extraction failed", "feed", f.Name, "link", e.Entry.Link, "error", err)
			} else {
				content = extracted
			}
		}

		articles = append(articles, database.NewArticle{
			NaturalKey:  e.Key,
			GUID:        e.Entry.GUID,
			Title:       e.Entry.Title,
			Link:        e.Entry.Link,
			Summary:     e.Entry.Summary,
			Content:     content,
			Authors:     e.Entry.Authors,
			PublishedAt: e.Entry.PublishedAt,
		})
	}

	if skipped > 0 {
		slog.Warn("Content extraction budget exhausted", "feed", f.Name, "skipped", skipped, "budget", timeout)
	}

	return articles
}

func (o *Orchestrator) lookupSettings(name string) *feed.Config {
	if o.settings == nil {
		return nil
	}
	settings, ok := o.settings.Lookup(name)
	if !ok {
		return nil
	}
	return settings
}

func (o *Orchestrator) fetchTimeout(f *database.Feed) time.Duration {
	if timeout := f.FetchTimeout(); timeout > 0 {
		return timeout
	}
	return o.limits.FetchTimeout
}
