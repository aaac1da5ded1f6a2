// Package cache is a Redis read-through decorator for the entitlement check
// path. Entries expire on a short TTL; webhook apply invalidates eagerly, so
// the TTL only bounds staleness for out-of-band backend changes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"gatehouse/internal/entitlement"
	"gatehouse/internal/entitlement/metrics"
)

const subjectKeyPrefix = "entitlement:subject:"

// entry is the cached envelope. Found distinguishes a cached "no record"
// answer from a cache miss, so absent subjects do not hammer the source.
type entry struct {
	Found  bool                `json:"found"`
	Status *entitlement.Status `json:"status,omitempty"`
}

// Cache decorates a Checker with Redis caching.
type Cache struct {
	client  *redis.Client
	inner   entitlement.Checker
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New wraps the inner checker with a Redis cache.
func New(client *redis.Client, inner entitlement.Checker, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		inner:  inner,
		ttl:    ttl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Check serves from cache when possible and reads through on a miss. Cache
// failures are fail-open: the inner checker still answers.
func (c *Cache) Check(ctx context.Context, subject string) (*entitlement.Status, error) {
	key := subjectKeyPrefix + subject

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached entry
		if unmarshalErr := json.Unmarshal(raw, &cached); unmarshalErr == nil {
			c.metrics.IncCacheEvent(metrics.CacheHit)
			if !cached.Found {
				return nil, nil
			}
			return cached.Status, nil
		}
		// Unreadable entry: treat as a miss and overwrite below.
		c.metrics.IncCacheEvent(metrics.CacheError)
	case errors.Is(err, redis.Nil):
		c.metrics.IncCacheEvent(metrics.CacheMiss)
	default:
		c.metrics.IncCacheEvent(metrics.CacheError)
		c.logger.WarnContext(ctx, "entitlement cache read failed",
			"error", err,
		)
	}

	status, err := c.inner.Check(ctx, subject)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, entry{Found: status != nil, Status: status})
	return status, nil
}

// Invalidate drops the cached entry for a subject.
func (c *Cache) Invalidate(ctx context.Context, subject string) error {
	if err := c.client.Del(ctx, subjectKeyPrefix+subject).Err(); err != nil {
		return err
	}
	c.metrics.IncCacheEvent(metrics.CacheInvalidate)
	return nil
}

func (c *Cache) store(ctx context.Context, key string, e entry) {
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.metrics.IncCacheEvent(metrics.CacheError)
		c.logger.WarnContext(ctx, "entitlement cache write failed",
			"error", err,
		)
	}
}
