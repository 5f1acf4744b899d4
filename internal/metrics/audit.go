package metrics

import (
	"context"
	"database/sql"
	"time"

	"memoryd/internal/logging"
)

// AuditEvent is one row destined for the audit_log table.
type AuditEvent struct {
	Actor     string
	Action    string
	EntryType string
	EntryID   string
	Result    string
	Detail    string
}

// AuditWriter persists AuditEvents through a buffered channel and a single
// background goroutine, so a mutation's audit trail never blocks the
// request that produced it — the same fire-and-forget shape as
// store.envelopeStore.RecordAccess.
type AuditWriter struct {
	db     *sql.DB
	events chan AuditEvent
	done   chan struct{}
}

// NewAuditWriter starts the background writer against db. Call Close to
// drain and stop it.
func NewAuditWriter(db *sql.DB, bufferSize int) *AuditWriter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	w := &AuditWriter{
		db:     db,
		events: make(chan AuditEvent, bufferSize),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

// Record enqueues an event; if the buffer is full the event is dropped and
// logged rather than blocking the caller.
func (w *AuditWriter) Record(event AuditEvent) {
	select {
	case w.events <- event:
	default:
		logging.Get(logging.CategoryAudit).Warn("audit log buffer full, dropping event: %s.%s", event.Action, event.EntryID)
	}
}

func (w *AuditWriter) run() {
	defer close(w.done)
	for event := range w.events {
		_, err := w.db.ExecContext(context.Background(),
			`INSERT INTO audit_log (ts, actor, action, entry_type, entry_id, result, detail)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			time.Now().UTC(), event.Actor, event.Action, event.EntryType, event.EntryID, event.Result, event.Detail,
		)
		if err != nil {
			logging.Get(logging.CategoryAudit).Error("failed to write audit log entry: %v", err)
		}
	}
}

// Close stops accepting new events and waits for the buffered ones to
// drain.
func (w *AuditWriter) Close() {
	close(w.events)
	<-w.done
}
