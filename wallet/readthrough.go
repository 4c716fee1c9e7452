package wallet

import (
	"context"
	"log/slog"
	"time"
)

// readThrough returns the cached value under key, or loads it, caches it and returns it.
// Cache failures degrade to a store read and are only logged.
func readThrough[T any](ctx context.Context, c Cache, logger *slog.Logger, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T

	if c != nil {
		hit, err := c.Get(ctx, key, &v)
		if err != nil {
			logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
		} else if hit {
			return v, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	writeThrough(ctx, c, logger, key, v, ttl)

	return v, nil
}

func writeThrough(ctx context.Context, c Cache, logger *slog.Logger, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}

	if err := c.Set(ctx, key, v, ttl); err != nil {
		logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
		// a stale entry is worse than none
		if derr := c.Delete(ctx, key); derr != nil {
			logger.WarnContext(ctx, "cache invalidate failed", "key", key, "error", derr)
		}
	}
}
