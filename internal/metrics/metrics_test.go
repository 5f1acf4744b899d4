package metrics

import (
	"database/sql"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func TestHandlerServesRegisteredCollectors(t *testing.T) {
	m := New()
	m.ClassificationResults.WithLabelValues("guideline", "rule").Inc()
	m.BreakerState.WithLabelValues("llm").Set(1)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !contains(body, "memoryd_classification_results_total") {
		t.Fatalf("body missing classification metric:\n%s", body)
	}
	if !contains(body, "memoryd_breaker_state") {
		t.Fatalf("body missing breaker metric:\n%s", body)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts DATETIME DEFAULT CURRENT_TIMESTAMP,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		entry_type TEXT,
		entry_id TEXT,
		result TEXT NOT NULL,
		detail TEXT DEFAULT ''
	)`); err != nil {
		t.Fatalf("create audit_log: %v", err)
	}
	return db
}

func TestAuditWriterPersistsEvents(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	writer := NewAuditWriter(db, 8)
	writer.Record(AuditEvent{Actor: "agent-1", Action: "add", EntryType: "guideline", EntryID: "g-1", Result: "ok"})
	writer.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM audit_log WHERE entry_id = 'g-1'`).Scan(&count); err != nil {
		t.Fatalf("query audit_log: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestAuditWriterDropsEventsWhenBufferFull(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	writer := &AuditWriter{db: db, events: make(chan AuditEvent, 1), done: make(chan struct{})}
	writer.events <- AuditEvent{Actor: "agent-1", Action: "add", Result: "ok"}

	// Buffer is full; this Record must not block the test.
	done := make(chan struct{})
	go func() {
		writer.Record(AuditEvent{Actor: "agent-2", Action: "add", Result: "ok"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Record() blocked on a full buffer")
	}
}
