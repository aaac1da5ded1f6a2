// Package postgres records processed provider event IDs. The insert runs in
// the same transaction as the mirror apply, so an event is marked processed
// exactly when its effects commit.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	txcontext "gatehouse/pkg/platform/tx"
)

const createStmt = `
CREATE TABLE IF NOT EXISTS processed_events (
	id          TEXT PRIMARY KEY,
	event_type  TEXT NOT NULL,
	received_at TIMESTAMPTZ NOT NULL
)`

// Store is the PostgreSQL-backed processed-event ledger.
type Store struct {
	db *sql.DB
}

// New creates a ledger over an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Bootstrap creates the processed_events table.
func (s *Store) Bootstrap(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("create processed_events table: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// MarkProcessed claims an event ID. It returns false when the ID was already
// claimed, which is how a concurrent or retried delivery learns it lost.
func (s *Store) MarkProcessed(ctx context.Context, eventID, eventType string, receivedAt time.Time) (bool, error) {
	query := `
		INSERT INTO processed_events (id, event_type, received_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, eventID, eventType, receivedAt)
	if err != nil {
		return false, fmt.Errorf("mark event processed: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark event processed: %w", err)
	}
	return inserted > 0, nil
}
