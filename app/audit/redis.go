package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultMaxEntries = 1000

// RedisLogger keeps the most recent audit entries in a capped Redis list.
type RedisLogger struct {
	client     *redis.Client
	key        string
	maxEntries int64
}

func NewRedisLogger(addr, key string) (*RedisLogger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Audit sink connected", "redis", addr, "key", key)

	return NewRedisLoggerWithClient(client, key, DefaultMaxEntries), nil
}

func NewRedisLoggerWithClient(client *redis.Client, key string, maxEntries int) *RedisLogger {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &RedisLogger{client: client, key: key, maxEntries: int64(maxEntries)}
}

func (l *RedisLogger) Log(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry.Stamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}

	pipe := l.client.TxPipeline()
	pipe.RPush(ctx, l.key, data)
	pipe.LTrim(ctx, l.key, -l.maxEntries, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *RedisLogger) Recent(ctx context.Context, limit int) ([]json.RawMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	values, err := l.client.LRange(ctx, l.key, -int64(limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit entries: %w", err)
	}

	entries := make([]json.RawMessage, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		entries = append(entries, json.RawMessage(values[i]))
	}
	return entries, nil
}

func (l *RedisLogger) Health(ctx context.Context) map[string]any {
	health := map[string]any{
		"status": "healthy",
		"type":   "redis",
	}

	if err := l.client.Ping(ctx).Err(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
		return health
	}

	if n, err := l.client.LLen(ctx, l.key).Result(); err == nil {
		health["entries"] = n
	}
	return health
}

func (l *RedisLogger) Close() error {
	return l.client.Close()
}
