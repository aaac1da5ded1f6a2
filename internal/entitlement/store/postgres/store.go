// Package postgres persists the subscriptions mirror in PostgreSQL. It is
// the production mirror store: one row per subject, written by the billing
// webhook and read on every protected request that misses the cache.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"gatehouse/internal/entitlement"
	txcontext "gatehouse/pkg/platform/tx"
)

const createStmt = `
CREATE TABLE IF NOT EXISTS entitlements (
	subject              TEXT PRIMARY KEY,
	customer_id          TEXT NOT NULL DEFAULT '',
	subscription_id      TEXT NOT NULL DEFAULT '',
	plan                 TEXT NOT NULL DEFAULT '',
	state                TEXT NOT NULL,
	current_period_end   TIMESTAMPTZ,
	cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at           TIMESTAMPTZ NOT NULL
)`

// Store is a PostgreSQL-backed subscriptions mirror.
type Store struct {
	db *sql.DB
}

// New creates a mirror store over an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Bootstrap creates the entitlements table. IF NOT EXISTS keeps it
// idempotent across restarts and replicas.
func (s *Store) Bootstrap(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("create entitlements table: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer returns the transaction from context when one is in flight, so
// webhook apply and its idempotency marker commit atomically.
func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Get returns the mirror row for a subject, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, subject string) (*entitlement.Status, error) {
	query := `
		SELECT subject, customer_id, subscription_id, plan, state,
		       current_period_end, cancel_at_period_end, updated_at
		FROM entitlements
		WHERE subject = $1
	`
	var (
		status    entitlement.Status
		state     string
		periodEnd sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, subject).Scan(
		&status.Subject,
		&status.CustomerID,
		&status.SubscriptionID,
		&status.Plan,
		&state,
		&periodEnd,
		&status.CancelAtPeriodEnd,
		&status.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get entitlement: %w", err)
	}
	status.State = entitlement.State(state)
	if periodEnd.Valid {
		status.CurrentPeriodEnd = periodEnd.Time
	}
	return &status, nil
}

// GetByCustomerID returns the most recently updated row bound to a payment
// provider customer, or (nil, nil) when the customer is unknown.
func (s *Store) GetByCustomerID(ctx context.Context, customerID string) (*entitlement.Status, error) {
	query := `
		SELECT subject, customer_id, subscription_id, plan, state,
		       current_period_end, cancel_at_period_end, updated_at
		FROM entitlements
		WHERE customer_id = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var (
		status    entitlement.Status
		state     string
		periodEnd sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, customerID).Scan(
		&status.Subject,
		&status.CustomerID,
		&status.SubscriptionID,
		&status.Plan,
		&state,
		&periodEnd,
		&status.CancelAtPeriodEnd,
		&status.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get entitlement by customer: %w", err)
	}
	status.State = entitlement.State(state)
	if periodEnd.Valid {
		status.CurrentPeriodEnd = periodEnd.Time
	}
	return &status, nil
}

// Upsert writes the status, replacing any existing row for the subject.
func (s *Store) Upsert(ctx context.Context, status entitlement.Status) error {
	query := `
		INSERT INTO entitlements (subject, customer_id, subscription_id, plan, state,
		                          current_period_end, cancel_at_period_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (subject) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			subscription_id = EXCLUDED.subscription_id,
			plan = EXCLUDED.plan,
			state = EXCLUDED.state,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			updated_at = EXCLUDED.updated_at
	`
	periodEnd := sql.NullTime{Time: status.CurrentPeriodEnd, Valid: !status.CurrentPeriodEnd.IsZero()}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		status.Subject,
		status.CustomerID,
		status.SubscriptionID,
		status.Plan,
		string(status.State),
		periodEnd,
		status.CancelAtPeriodEnd,
		status.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert entitlement: %w", err)
	}
	return nil
}
