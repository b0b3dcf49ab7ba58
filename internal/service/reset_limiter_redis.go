package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisResetLimiter counts attempts in redis so the limit holds across all
// process instances. Fixed window: the counter expires one window after the
// first attempt in it.
type RedisResetLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

// NewRedisResetLimiter constructs a redis-backed limiter.
func NewRedisResetLimiter(client *redis.Client, max int, window time.Duration) *RedisResetLimiter {
	if max <= 0 {
		max = 3
	}
	if window <= 0 {
		window = time.Hour
	}
	return &RedisResetLimiter{client: client, max: max, window: window}
}

// Allow increments the per-email counter and reports whether it stayed
// within the limit.
func (l *RedisResetLimiter) Allow(ctx context.Context, email string) (bool, error) {
	key := fmt.Sprintf("reset_attempts:%s", strings.ToLower(email))

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("reset limiter incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("reset limiter expire: %w", err)
		}
	}

	return count <= int64(l.max), nil
}
