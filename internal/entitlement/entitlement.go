// Package entitlement answers the subscription question for a subject: does
// this user currently hold an active entitlement? The answer is read from a
// local subscriptions mirror kept fresh by billing webhooks, or queried live
// from the application backend, depending on deployment configuration.
package entitlement

import (
	"context"
	"time"
)

// State is the subscription lifecycle state as reported by the payment
// provider.
type State string

const (
	StateTrialing   State = "trialing"
	StateActive     State = "active"
	StatePastDue    State = "past_due"
	StateCanceled   State = "canceled"
	StateIncomplete State = "incomplete"
	StateUnpaid     State = "unpaid"
)

// Status is the normalized entitlement record for one subject.
type Status struct {
	Subject           string    `json:"subject"`
	CustomerID        string    `json:"customer_id,omitempty"`
	SubscriptionID    string    `json:"subscription_id,omitempty"`
	Plan              string    `json:"plan,omitempty"`
	State             State     `json:"state"`
	CurrentPeriodEnd  time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Active reports whether the status grants access to protected routes.
// Trialing subscriptions count; past-due, canceled and unpaid do not.
// A subscription pending cancellation stays active until the period ends.
func (s *Status) Active() bool {
	if s == nil {
		return false
	}
	return s.State == StateActive || s.State == StateTrialing
}

// Checker answers the entitlement question for a subject. A (nil, nil)
// return means the subject has no entitlement record at all, which callers
// treat the same as an inactive one. Errors are reserved for infrastructure
// failures (store down, backend unreachable).
type Checker interface {
	Check(ctx context.Context, subject string) (*Status, error)
}

// Store persists the local subscriptions mirror. Both lookups follow the
// Checker contract: (nil, nil) when no matching row exists. GetByCustomerID
// maps a payment-provider customer back to its subject; webhook events that
// carry no subject metadata resolve through it.
type Store interface {
	Get(ctx context.Context, subject string) (*Status, error)
	GetByCustomerID(ctx context.Context, customerID string) (*Status, error)
	Upsert(ctx context.Context, status Status) error
}

// Invalidator drops a cached entitlement entry so the next check reads
// through to the source of record.
type Invalidator interface {
	Invalidate(ctx context.Context, subject string) error
}

// StoreChecker adapts a Store's read path to the Checker interface.
type StoreChecker struct {
	store Store
}

// NewStoreChecker wraps a mirror store for use on the check path.
func NewStoreChecker(store Store) *StoreChecker {
	return &StoreChecker{store: store}
}

func (c *StoreChecker) Check(ctx context.Context, subject string) (*Status, error) {
	return c.store.Get(ctx, subject)
}
