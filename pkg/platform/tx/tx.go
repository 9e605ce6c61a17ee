// Package tx carries database transactions through context and provides
// Runner implementations that give services one atomicity seam regardless of
// which store backs them.
//
// Postgres stores check From(ctx) and route statements through the transaction
// when one is present. The memory runner cannot provide rollback; it
// serializes the callback under a lock so no concurrent mutation interleaves,
// which is the strongest guarantee an in-process map can offer.
package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "conforma/pkg/domain-errors"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner executes a mutation callback atomically. The callback receives a
// context that transaction-aware stores recognize.
type Runner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// memoryRunner serializes callbacks with a mutex. Used when stores are
// in-memory and there is no database transaction to lean on.
type memoryRunner struct {
	mu sync.Mutex
}

// NewMemoryRunner returns a Runner for in-memory store wiring.
func NewMemoryRunner() Runner {
	return &memoryRunner{}
}

func (r *memoryRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}

const defaultSQLTxTimeout = 5 * time.Second

// sqlRunner wraps the callback in a database transaction injected via WithTx.
type sqlRunner struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLRunner returns a Runner that opens a transaction per callback.
// A zero timeout falls back to a 5s default; the timeout only applies when
// the incoming context has no deadline of its own.
func NewSQLRunner(db *sql.DB, timeout time.Duration) Runner {
	return &sqlRunner{db: db, timeout: timeout}
}

func (r *sqlRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultSQLTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	if err := fn(WithTx(ctx, dbTx)); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return err
	}
	return nil
}
