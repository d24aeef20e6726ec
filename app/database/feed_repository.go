package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const feedColumns = `id, name, url, title, link, description, image_url, language, status,
	translation_enabled, refresh_interval_seconds, fetch_timeout_seconds, etag, last_modified,
	last_error, consecutive_failures, last_refreshed_at, next_fetch_at, created_at, updated_at`

type feedRepository struct {
	db  *DB
	now func() time.Time
}

func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var (
		feed            Feed
		status          string
		lastRefreshedAt sql.NullInt64
		nextFetchAt     sql.NullInt64
		createdAt       int64
		updatedAt       int64
	)

	err := row.Scan(
		&feed.ID, &feed.Name, &feed.URL, &feed.Title, &feed.Link, &feed.Description, &feed.ImageURL, &feed.Language, &status,
		&feed.TranslationEnabled, &feed.RefreshIntervalSeconds, &feed.FetchTimeoutSeconds, &feed.ETag, &feed.LastModified,
		&feed.LastError, &feed.ConsecutiveFailures, &lastRefreshedAt, &nextFetchAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	feed.Status = FeedStatus(status)
	feed.LastRefreshedAt = fromNullMillis(lastRefreshedAt)
	feed.NextFetchAt = fromNullMillis(nextFetchAt)
	feed.CreatedAt = fromMillis(createdAt)
	feed.UpdatedAt = fromMillis(updatedAt)

	return &feed, nil
}

func (r *feedRepository) queryFeeds(ctx context.Context, query string, args ...any) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *feedRepository) GetFeed(ctx context.Context, id string) (*Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)
	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return feed, nil
}

func (r *feedRepository) GetFeedByName(ctx context.Context, name string) (*Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE name = ?`, name)
	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by name: %w", err)
	}
	return feed, nil
}

// GetFeedsByIDs returns the feeds that exist among ids; missing ids are
// silently absent from the result.
func (r *feedRepository) GetFeedsByIDs(ctx context.Context, ids []string) ([]Feed, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	feeds, err := r.queryFeeds(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id IN (`+placeholders+`) ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds by id: %w", err)
	}
	return feeds, nil
}

func (r *feedRepository) ListFeeds(ctx context.Context) ([]Feed, error) {
	feeds, err := r.queryFeeds(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	return feeds, nil
}

func (r *feedRepository) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// FindFeedsDueForRefresh returns active feeds whose next fetch time is at or
// before now, never-fetched feeds first. It is a single statement, so one
// scheduling pass sees one consistent due set.
func (r *feedRepository) FindFeedsDueForRefresh(ctx context.Context, now time.Time) ([]Feed, error) {
	feeds, err := r.queryFeeds(ctx, `
		SELECT `+feedColumns+`
		FROM feeds
		WHERE status = ?
		  AND (next_fetch_at IS NULL OR next_fetch_at <= ?)
		ORDER BY COALESCE(next_fetch_at, 0), name
	`, string(FeedStatusActive), toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds due for refresh: %w", err)
	}
	return feeds, nil
}

// FindRefreshableFeeds returns every feed that is not paused.
func (r *feedRepository) FindRefreshableFeeds(ctx context.Context) ([]Feed, error) {
	feeds, err := r.queryFeeds(ctx, `SELECT `+feedColumns+` FROM feeds WHERE status <> ? ORDER BY name`, string(FeedStatusPaused))
	if err != nil {
		return nil, fmt.Errorf("failed to get refreshable feeds: %w", err)
	}
	return feeds, nil
}

// UpsertFeed inserts a feed or updates its configured attributes. A URL change
// clears the HTTP validators and makes the feed due immediately.
func (r *feedRepository) UpsertFeed(ctx context.Context, feed FeedSync) (string, error) {
	if feed.Name == "" || feed.URL == "" {
		return "", fmt.Errorf("feed name and URL are required")
	}

	status := FeedStatusActive
	if feed.Paused {
		status = FeedStatusPaused
	}
	now := toMillis(r.now())

	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO feeds (id, name, url, title, status, translation_enabled,
			refresh_interval_seconds, fetch_timeout_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			url = excluded.url,
			title = CASE WHEN excluded.title <> '' THEN excluded.title ELSE feeds.title END,
			status = CASE
				WHEN excluded.status = 'PAUSED' THEN 'PAUSED'
				WHEN feeds.status = 'PAUSED' THEN 'ACTIVE'
				ELSE feeds.status
			END,
			translation_enabled = excluded.translation_enabled,
			refresh_interval_seconds = excluded.refresh_interval_seconds,
			fetch_timeout_seconds = excluded.fetch_timeout_seconds,
			etag = CASE WHEN feeds.url <> excluded.url THEN '' ELSE feeds.etag END,
			last_modified = CASE WHEN feeds.url <> excluded.url THEN '' ELSE feeds.last_modified END,
			next_fetch_at = CASE WHEN feeds.url <> excluded.url THEN NULL ELSE feeds.next_fetch_at END,
			updated_at = excluded.updated_at
		RETURNING id
	`, uuid.NewString(), feed.Name, feed.URL, feed.Title, string(status), feed.TranslationEnabled,
		feed.RefreshIntervalSeconds, feed.FetchTimeoutSeconds, now, now).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert feed: %w", err)
	}

	return id, nil
}

func (r *feedRepository) UpdateFeedMetadata(ctx context.Context, id string, metadata FeedMetadata) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET title = COALESCE(NULLIF(?, ''), title),
		    link = COALESCE(NULLIF(?, ''), link),
		    description = COALESCE(NULLIF(?, ''), description),
		    image_url = COALESCE(NULLIF(?, ''), image_url),
		    language = COALESCE(NULLIF(?, ''), language),
		    etag = ?,
		    last_modified = ?,
		    updated_at = ?
		WHERE id = ?
	`, metadata.Title, metadata.Link, metadata.Description, metadata.ImageURL, metadata.Language,
		metadata.ETag, metadata.LastModified, toMillis(r.now()), id)
	if err != nil {
		return fmt.Errorf("failed to update feed metadata: %w", err)
	}
	return nil
}

func (r *feedRepository) UpdateFeedSchedule(ctx context.Context, id string, update ScheduleUpdate) error {
	if !update.Status.Valid() {
		return fmt.Errorf("invalid feed status %q", update.Status)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET last_refreshed_at = ?,
		    next_fetch_at = ?,
		    status = ?,
		    last_error = ?,
		    consecutive_failures = ?,
		    updated_at = ?
		WHERE id = ?
	`, toMillis(update.LastRefreshedAt), toMillis(update.NextFetchAt), string(update.Status),
		update.LastError, update.ConsecutiveFailures, toMillis(r.now()), id)
	if err != nil {
		return fmt.Errorf("failed to update feed schedule: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update feed schedule: feed %s not found", id)
	}

	return nil
}
