package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// Watermarks implements domain.Watermarks using plain Redis strings under
// "mark:{key}". No TTL: a checkpoint must outlive any one process.
type Watermarks struct {
	rdb *redis.Client
}

// NewWatermarks creates a Watermarks store backed by the given Client.
func NewWatermarks(c *Client) *Watermarks {
	return &Watermarks{rdb: c.Underlying()}
}

func markKey(key string) string {
	return "mark:" + key
}

// Get returns the stored checkpoint, or "" when the key has never been set.
func (w *Watermarks) Get(ctx context.Context, key string) (string, error) {
	val, err := w.rdb.Get(ctx, markKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis: get watermark %s: %w", key, err)
	}
	return val, nil
}

// Set overwrites the stored checkpoint.
func (w *Watermarks) Set(ctx context.Context, key, value string) error {
	if err := w.rdb.Set(ctx, markKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis: set watermark %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.Watermarks = (*Watermarks)(nil)
