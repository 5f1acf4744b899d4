package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

type txMarkerKey struct{}

// Tx wraps the SQL transaction handed to a Transaction body. closed flips to
// true the instant Transaction has committed or rolled back; every method
// below checks it first so a goroutine body spawned and forgot to join
// before returning gets a TransactionAsyncEscapeError instead of either
// silently touching a dead *sql.Tx or corrupting whatever connection the
// pool has since handed to someone else.
type Tx struct {
	tx     *sql.Tx
	id     string
	closed *atomic.Bool
}

func (t *Tx) checkOpen() error {
	if t.closed.Load() {
		return &TransactionAsyncEscapeError{
			TxID:        t.id,
			Cause:       "transaction body used Tx after Transaction had already committed or rolled back",
			Remediation: "join every goroutine started inside the body before it returns; do not retain or pass the *Tx to async work",
		}
	}
	return nil
}

// Exec and Query delegate to the underlying *sql.Tx. Repositories never hold
// a *sql.Tx directly so every statement they run passes through here.
func (t *Tx) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *Tx) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	return t.tx.QueryContext(ctx, query, args...)
}

// QueryRow cannot carry a TransactionAsyncEscapeError through *sql.Row's
// Scan the way Exec/Query return it directly; a post-close call still runs
// against the now-committed-or-rolled-back *sql.Tx, which the stdlib itself
// fails with sql.ErrTxDone on Scan — the same escape, surfaced one layer
// down instead of intercepted here.
func (t *Tx) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// TransactionAsyncEscapeError is raised when a Transaction body returns
// control to the caller before every side effect it started has settled —
// concretely, when a goroutine spawned inside body keeps using the *Tx after
// Transaction has already committed or rolled back it.
type TransactionAsyncEscapeError struct {
	TxID        string
	Cause       string
	Remediation string
}

func (e *TransactionAsyncEscapeError) Error() string {
	return fmt.Sprintf("store: transaction escape detected. Transaction ID: %s. Cause: %s. Remediation: %s", e.TxID, e.Cause, e.Remediation)
}

// NestedTransactionError is raised when Transaction is called again using a
// context that already carries an open transaction.
type NestedTransactionError struct{}

func (e *NestedTransactionError) Error() string {
	return "store: nested transaction: body attempted to open a transaction within a transaction"
}

// Transaction runs body synchronously inside a single *sql.Tx and commits on
// success, rolling back on any error or panic. body must not retain the *Tx
// or touch it from another goroutine after returning — doing so is reported
// as a TransactionAsyncEscapeError the next time this connection is used,
// because the settled channel below is closed exactly once, synchronously,
// when body returns.
func (a *Adapter) Transaction(ctx context.Context, body func(ctx context.Context, tx *Tx) (interface{}, error)) (interface{}, error) {
	if ctx.Value(txMarkerKey{}) != nil {
		return nil, &NestedTransactionError{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	sqlTx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin transaction: %w", err)
	}

	innerCtx := context.WithValue(ctx, txMarkerKey{}, true)
	txID := "txn-" + uuid.NewString()
	closed := &atomic.Bool{}
	tx := &Tx{tx: sqlTx, id: txID, closed: closed}

	settled := make(chan struct{})
	type outcome struct {
		result interface{}
		err    error
	}
	results := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- outcome{nil, fmt.Errorf("store: transaction body panicked: %v", r)}
			}
			close(settled)
		}()
		res, bodyErr := body(innerCtx, tx)
		results <- outcome{res, bodyErr}
	}()

	<-settled
	out := <-results

	// Mark the Tx closed before touching sqlTx ourselves, so any goroutine
	// the body spawned and failed to join sees every subsequent Exec/Query
	// rejected with TransactionAsyncEscapeError rather than racing the
	// commit/rollback below or silently reusing a dead connection.
	closed.Store(true)

	if out.err != nil {
		sqlTx.Rollback()
		return nil, out.err
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit transaction: %w", err)
	}

	return out.result, nil
}

// inTransaction reports whether ctx was produced by an active Transaction
// call, used by repository code paths that must refuse to nest.
func inTransaction(ctx context.Context) bool {
	return ctx.Value(txMarkerKey{}) != nil
}
