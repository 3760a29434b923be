package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"psychic-credits/internal/infra/metrics"
)

// RateLimiter is a fixed-window counter keyed per caller.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		metrics.IncRateLimit(scopeOf(key), "error")
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		metrics.IncRateLimit(scopeOf(key), "blocked")
		return false, nil
	}

	metrics.IncRateLimit(scopeOf(key), "allowed")
	return true, nil
}

func UserActionKey(userID, action string) string {
	return fmt.Sprintf("rate_limit:%s:%s", action, userID)
}

func scopeOf(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 || parts[0] != "rate_limit" {
		return "unknown"
	}
	return parts[1]
}
