package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

var errIntentional = errors.New("intentional test failure")

func openTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "memoryd.db")
	a, err := Open(Options{Path: dbPath, BusyTimeoutMS: 5000})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestOpenCreatesSchemaAndIsReopenable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "memoryd.db")

	a, err := Open(Options{Path: dbPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	stats := a.Stats()
	if _, ok := stats["guidelines"]; !ok {
		t.Fatalf("expected guidelines table to exist after open")
	}
	a.Close()

	a2, err := Open(Options{Path: dbPath})
	if err != nil {
		t.Fatalf("reopen Open() error = %v", err)
	}
	defer a2.Close()
}

func TestOpenFailsFastWhenVecRequiredButUnavailable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "memoryd.db")
	// The sqlite3 driver registered in this module's test binary is the
	// stock mattn build without the sqlite_vec build tag, so RequireVec
	// must fail the open rather than silently falling back.
	_, err := Open(Options{Path: dbPath, RequireVec: true})
	if err == nil {
		t.Fatalf("expected error when vec extension required but unavailable")
	}
}

func TestTransactionCommitsOnSuccess(t *testing.T) {
	a := openTestAdapter(t)

	_, err := a.Transaction(context.Background(), func(ctx context.Context, tx *Tx) (interface{}, error) {
		_, execErr := tx.Exec(ctx, `INSERT INTO pattern_confidence (pattern_id, feedback_multiplier) VALUES (?, ?)`, "p1", 1.0)
		return nil, execErr
	})
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}

	var count int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM pattern_confidence WHERE pattern_id = ?`, "p1").Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	a := openTestAdapter(t)

	_, err := a.Transaction(context.Background(), func(ctx context.Context, tx *Tx) (interface{}, error) {
		tx.Exec(ctx, `INSERT INTO pattern_confidence (pattern_id, feedback_multiplier) VALUES (?, ?)`, "p2", 1.0)
		return nil, errIntentional
	})
	if err == nil {
		t.Fatalf("expected error to propagate")
	}

	var count int
	a.db.QueryRow(`SELECT COUNT(*) FROM pattern_confidence WHERE pattern_id = ?`, "p2").Scan(&count)
	if count != 0 {
		t.Fatalf("count = %d, want 0 after rollback", count)
	}
}

func TestNestedTransactionRejected(t *testing.T) {
	a := openTestAdapter(t)

	_, err := a.Transaction(context.Background(), func(ctx context.Context, tx *Tx) (interface{}, error) {
		return a.Transaction(ctx, func(ctx context.Context, tx *Tx) (interface{}, error) {
			return nil, nil
		})
	})
	if err == nil {
		t.Fatalf("expected nested transaction to be rejected")
	}
	var nestedErr *NestedTransactionError
	if !errors.As(err, &nestedErr) {
		t.Fatalf("expected NestedTransactionError, got %v (%T)", err, err)
	}
}
