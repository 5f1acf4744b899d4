package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestTransactionCommitsOnSuccess(t *testing.T) {
	a := openTestAdapter(t)

	result, err := a.Transaction(context.Background(), func(ctx context.Context, tx *Tx) (interface{}, error) {
		if _, err := tx.Exec(ctx, `INSERT INTO guidelines (id, scope_type, scope_id, current_version_id, is_active, created_at) VALUES (?, ?, ?, ?, 1, ?)`,
			"g-1", "global", "", "v-1", time.Now().UTC()); err != nil {
			return nil, err
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}
	if result != "ok" {
		t.Fatalf("result = %v, want ok", result)
	}

	var count int
	a.db.QueryRow(`SELECT COUNT(*) FROM guidelines WHERE id = ?`, "g-1").Scan(&count)
	if count != 1 {
		t.Fatalf("expected committed row to be visible")
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	a := openTestAdapter(t)

	_, err := a.Transaction(context.Background(), func(ctx context.Context, tx *Tx) (interface{}, error) {
		if _, err := tx.Exec(ctx, `INSERT INTO guidelines (id, scope_type, scope_id, current_version_id, is_active, created_at) VALUES (?, ?, ?, ?, 1, ?)`,
			"g-2", "global", "", "v-2", time.Now().UTC()); err != nil {
			return nil, err
		}
		return nil, errIntentional
	})
	if !errors.Is(err, errIntentional) {
		t.Fatalf("Transaction() error = %v, want errIntentional", err)
	}

	var count int
	a.db.QueryRow(`SELECT COUNT(*) FROM guidelines WHERE id = ?`, "g-2").Scan(&count)
	if count != 0 {
		t.Fatalf("expected rolled-back row to be absent")
	}
}

func TestTransactionRejectsNesting(t *testing.T) {
	a := openTestAdapter(t)

	_, err := a.Transaction(context.Background(), func(ctx context.Context, tx *Tx) (interface{}, error) {
		return a.Transaction(ctx, func(ctx context.Context, inner *Tx) (interface{}, error) {
			return nil, nil
		})
	})
	var nested *NestedTransactionError
	if !errors.As(err, &nested) {
		t.Fatalf("Transaction() error = %v, want NestedTransactionError", err)
	}
}

func TestTransactionAsyncEscapeIsDetected(t *testing.T) {
	a := openTestAdapter(t)

	var escapedTx *Tx
	var wg sync.WaitGroup
	wg.Add(1)

	_, err := a.Transaction(context.Background(), func(ctx context.Context, tx *Tx) (interface{}, error) {
		escapedTx = tx
		go func() {
			defer wg.Done()
			// Gives Transaction a chance to commit before this goroutine
			// tries to keep using tx, reproducing the escape.
			time.Sleep(20 * time.Millisecond)
			_, _ = escapedTx.Exec(ctx, `SELECT 1`)
		}()
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}
	wg.Wait()

	_, execErr := escapedTx.Exec(context.Background(), `SELECT 1`)
	var escape *TransactionAsyncEscapeError
	if !errors.As(execErr, &escape) {
		t.Fatalf("Exec() after Transaction returned error = %v, want TransactionAsyncEscapeError", execErr)
	}
	if !strings.HasPrefix(escape.TxID, "txn-") {
		t.Fatalf("TxID = %q, want txn- prefix", escape.TxID)
	}
	if !strings.Contains(escape.Error(), "Transaction ID: txn-") {
		t.Fatalf("Error() = %q, want it to report the transaction id", escape.Error())
	}
}
