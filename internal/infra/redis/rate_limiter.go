package redis

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter: first INCR in a window sets the
// expiry, counts past the limit are rejected until the window rolls.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

func SearchCallerKey(caller string) string {
	return "rate_limit:search:" + caller
}
