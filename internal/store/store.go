// Package store holds the SQL for members, item lots, transactions, and the
// operator tables. Functions take a Querier so the ledger can run several of
// them inside one *sql.Tx.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nurdspace/nurdbar/internal/db"
	"github.com/nurdspace/nurdbar/internal/model"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// nowFunc is the clock used for created_at/updated_at. Tests replace it.
var nowFunc = func() time.Time { return time.Now().UTC() }

// Now returns the store clock's current time.
func Now() time.Time {
	return nowFunc()
}

// touch returns a modification time strictly after prev.
func touch(prev time.Time) time.Time {
	now := nowFunc()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

// wrap adds op context to err and tags errors that mean the database itself
// is unusable with model.ErrStoreUnavailable.
func wrap(op string, err error) error {
	if db.IsUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// WithTx runs fn inside a transaction, committing if fn returns nil.
func WithTx(ctx context.Context, database *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return wrap("beginning transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrap("committing transaction", err)
	}
	return nil
}
