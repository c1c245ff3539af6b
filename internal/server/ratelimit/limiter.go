// Package ratelimit implements a fixed-window request counter in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

var ErrUnavailable = errors.New("rate limiter unavailable")

// Limiter allows at most limit hits per key within each window. The window
// starts with the first hit on a key.
type Limiter struct {
	redis  redis.UniversalClient
	limit  int64
	window time.Duration
}

func New(client redis.UniversalClient, limit int, window time.Duration) (*Limiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	return &Limiter{redis: client, limit: int64(limit), window: window}, nil
}

// Allow records a hit on key and reports whether it is within the limit.
// On Redis failure it returns an error wrapping ErrUnavailable; callers decide
// whether to fail open.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	k := keyPrefix + key

	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return incr.Val() <= l.limit, nil
}

// Reset forgets all hits on key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
