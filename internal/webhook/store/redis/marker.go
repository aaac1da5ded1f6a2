// Package redis keeps a fast-path record of delivered provider event IDs.
// It spares the database a transaction on retried deliveries; the
// processed_events table remains the authoritative check, so losing Redis
// only costs speed, never correctness.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const eventKeyPrefix = "webhook:event:"

// Marker remembers delivered event IDs for a bounded window.
type Marker struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a marker. The TTL should exceed the provider's retry horizon;
// anything delivered after it falls through to the database check.
func New(client *redis.Client, ttl time.Duration) *Marker {
	return &Marker{client: client, ttl: ttl}
}

// Seen reports whether the event ID was already marked.
func (m *Marker) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := m.client.Exists(ctx, eventKeyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("check event marker: %w", err)
	}
	return n > 0, nil
}

// Mark records the event ID. It is called only after the processing
// transaction commits, so a crash in between re-runs the event and the
// database dedupe catches it.
func (m *Marker) Mark(ctx context.Context, eventID string) error {
	if err := m.client.SetNX(ctx, eventKeyPrefix+eventID, 1, m.ttl).Err(); err != nil {
		return fmt.Errorf("set event marker: %w", err)
	}
	return nil
}
