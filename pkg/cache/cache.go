// Package cache provides a JSON read-through helper over the persistent cache.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Cacher defines the caching interface. store.SQLiteStore implements it.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// Fetch returns the cached value for key, or calls fn and stores its result.
// A nil Cacher disables caching. Errors from fn are returned and never cached;
// write failures are logged and ignored.
func Fetch[T any](ctx context.Context, c Cacher, key string, fn func(context.Context) (T, error)) (T, error) {
	if c != nil {
		if raw, ok := c.GetCache(ctx, key); ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				return v, nil
			}
			slog.Debug("Discarding undecodable cache entry", "key", key)
		}
	}

	v, err := fn(ctx)
	if err != nil {
		return v, err
	}

	if c != nil {
		if raw, err := json.Marshal(v); err == nil {
			if err := c.SetCache(ctx, key, raw); err != nil {
				slog.Warn("Cache write failed", "key", key, "error", err)
			}
		}
	}
	return v, nil
}
