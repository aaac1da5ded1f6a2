package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const windowKeyPrefix = "rl:window:"

// RedisLimiter is the distributed limiter: every gateway replica increments
// the same per-key window counter. Keys carry the window start, so a window
// expires by key TTL rather than by cleanup work.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// RedisOption configures a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithRedisClock overrides the clock. Tests only.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(l *RedisLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewRedisLimiter creates a fixed-window limiter over the shared Redis
// client, allowing limit requests per window for each key.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, opts ...RedisOption) *RedisLimiter {
	l := &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Allow counts the request against the key's current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	windowStart := l.now().Truncate(l.window)
	redisKey := windowKeyPrefix + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	// INCR and EXPIRE travel in one pipeline round trip. The extra window of
	// TTL keeps a key alive through clock skew between replicas; the stamped
	// key name is what actually closes the window.
	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, 2*l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("increment rate limit window: %w", err)
	}

	count := int(incr.Val())
	return l.result(count, windowStart), nil
}

func (l *RedisLimiter) result(count int, windowStart time.Time) Result {
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   windowStart.Add(l.window),
	}
}
