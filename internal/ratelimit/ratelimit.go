// Package ratelimit guards the public surfaces (webhook receiver, API
// endpoints) against abusive callers with a fixed-window counter per client
// IP. Limiting is advisory for availability, not a security boundary: when
// the limiter itself fails the request proceeds.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one limiter check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts a request against a key's window and reports whether it
// fits. Implementations must be safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}
