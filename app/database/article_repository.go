package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLite caps bound parameters per statement; key lookups are chunked below it.
const keyLookupChunk = 500

type articleRepository struct {
	db  *DB
	now func() time.Time
}

func NewArticleRepository(db *DB) ArticleRepository {
	return &articleRepository{db: db, now: time.Now}
}

func (r *articleRepository) FindExistingArticleKeys(ctx context.Context, feedID string, keys []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})

	for start := 0; start < len(keys); start += keyLookupChunk {
		end := min(start+keyLookupChunk, len(keys))
		chunk := keys[start:end]

		args := make([]any, 0, len(chunk)+1)
		args = append(args, feedID)
		for _, key := range chunk {
			args = append(args, key)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := r.db.QueryContext(ctx,
			`SELECT natural_key FROM articles WHERE feed_id = ? AND natural_key IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to find existing article keys: %w", err)
		}

		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan article key: %w", err)
			}
			existing[key] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("error iterating article keys: %w", err)
		}
	}

	return existing, nil
}

// InsertArticles stores articles in the given order inside one transaction.
// Rows that collide on (feed_id, natural_key) are skipped, not reported as
// errors; the returned count covers only rows actually inserted.
func (r *articleRepository) InsertArticles(ctx context.Context, feedID string, articles []NewArticle) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (id, feed_id, natural_key, guid, title, link, summary, content, authors, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (feed_id, natural_key) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare article insert: %w", err)
	}
	defer stmt.Close()

	createdAt := toMillis(r.now())
	inserted := 0
	for _, article := range articles {
		if article.NaturalKey == "" {
			return 0, fmt.Errorf("article %q has no natural key", article.Title)
		}

		authors, err := json.Marshal(nonNil(article.Authors))
		if err != nil {
			return 0, fmt.Errorf("failed to encode authors: %w", err)
		}

		res, err := stmt.ExecContext(ctx, uuid.NewString(), feedID, article.NaturalKey, article.GUID, article.Title,
			article.Link, article.Summary, article.Content, string(authors), nullMillis(article.PublishedAt), createdAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert article: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit articles: %w", err)
	}

	return inserted, nil
}

// GetArticles returns the newest articles of a feed, most recent first.
func (r *articleRepository) GetArticles(ctx context.Context, feedID string, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, feed_id, natural_key, guid, title, link, summary, content, authors, published_at, created_at
		FROM articles
		WHERE feed_id = ?
		ORDER BY COALESCE(published_at, created_at) DESC, rowid DESC
		LIMIT ?
	`, feedID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var (
			article     Article
			authors     string
			publishedAt sql.NullInt64
			createdAt   int64
		)
		err := rows.Scan(&article.ID, &article.FeedID, &article.NaturalKey, &article.GUID, &article.Title,
			&article.Link, &article.Summary, &article.Content, &authors, &publishedAt, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		if err := json.Unmarshal([]byte(authors), &article.Authors); err != nil {
			return nil, fmt.Errorf("failed to decode authors: %w", err)
		}
		article.PublishedAt = fromNullMillis(publishedAt)
		article.CreatedAt = fromMillis(createdAt)
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

func (r *articleRepository) GetArticleCount(ctx context.Context, feedID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles WHERE feed_id = ?", feedID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get article count: %w", err)
	}
	return count, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
