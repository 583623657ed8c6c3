package redis

import (
	"context"
	"time"
)

const rateLimitPrefix = "imagegen:rl:"

// RateLimiter counts requests per key in fixed windows that start at the first hit.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow reports whether one more request fits into the window of key.
// A limit of zero or less never rejects.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			// a counter without a ttl would block the client forever
			_ = r.client.Del(context.WithoutCancel(ctx), key)
			return false, err
		}
	}
	return count <= int64(limit), nil
}

// ClientRouteKey is the counter key for one API client on one route.
func ClientRouteKey(client, route string) string {
	return rateLimitPrefix + client + ":" + route
}
