// Package tx carries an open SQL transaction through context so stores can
// join a caller-owned commit. The webhook apply path opens one transaction
// around the event-ledger claim and the mirror upsert; both stores route
// their writes through it and the pair commits or rolls back together.
package tx

import (
	"context"
	"database/sql"
)

type txKey struct{}

// WithTx returns a context carrying tx. Stores that find one join it instead
// of writing through their own handle.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// From returns the transaction in flight, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}
