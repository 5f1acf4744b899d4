package export

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var entryTableByKind = map[string]string{
	"guideline":  "guidelines",
	"tool":       "tools",
	"knowledge":  "knowledge_entries",
	"experience": "experiences",
}

// SQLArchiver implements StaleLister, ArchiveStore, Deactivator, and
// ExistenceChecker against the shared entry tables and the archived_entries
// shadow table (internal/store/migrations.go), the same tables
// ArchiveOldFacts sweep used under their fact-specific names.
type SQLArchiver struct {
	db *sql.DB
}

// NewSQLArchiver wraps an already-open database handle.
func NewSQLArchiver(db *sql.DB) *SQLArchiver {
	return &SQLArchiver{db: db}
}

// ListStaleCandidates scans every entry table for active rows last touched
// before olderThan with an access count at or below maxAccessCount.
func (a *SQLArchiver) ListStaleCandidates(ctx context.Context, olderThan time.Time, maxAccessCount int64) ([]ArchivalCandidate, error) {
	var out []ArchivalCandidate
	for kind, table := range entryTableByKind {
		rows, err := a.db.QueryContext(ctx, fmt.Sprintf(
			`SELECT id, access_count, last_accessed_at, created_at FROM %s
			 WHERE is_active = 1 AND access_count <= ?
			 AND (last_accessed_at IS NULL OR last_accessed_at < ?)
			 AND created_at < ?`, table),
			maxAccessCount, olderThan, olderThan)
		if err != nil {
			return nil, fmt.Errorf("export: scan %s for staleness: %w", table, err)
		}

		for rows.Next() {
			var c ArchivalCandidate
			var lastAccessed sql.NullTime
			if err := rows.Scan(&c.EntryID, &c.AccessCount, &lastAccessed, &c.CreatedAt); err != nil {
				rows.Close()
				return nil, err
			}
			c.EntryType = kind
			if lastAccessed.Valid {
				t := lastAccessed.Time
				c.LastAccessedAt = &t
			}
			out = append(out, c)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// RecordArchived writes a shadow row noting when an entry was archived.
func (a *SQLArchiver) RecordArchived(ctx context.Context, entryType, entryID string, archivedAt time.Time) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO archived_entries (entry_type, entry_id, payload, archived_at) VALUES (?, ?, '{}', ?)
		 ON CONFLICT (entry_type, entry_id) DO UPDATE SET archived_at = excluded.archived_at`,
		entryType, entryID, archivedAt)
	if err != nil {
		return fmt.Errorf("export: record archived %s/%s: %w", entryType, entryID, err)
	}
	return nil
}

// SetActive flips an entry's is_active flag without touching its version
// chain, used both to deactivate on archival and to reactivate on import.
func (a *SQLArchiver) SetActive(ctx context.Context, entryType, entryID string, active bool) error {
	table, ok := entryTableByKind[entryType]
	if !ok {
		return fmt.Errorf("export: unknown kind %q", entryType)
	}
	_, err := a.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET is_active = ? WHERE id = ?`, table), active, entryID)
	if err != nil {
		return fmt.Errorf("export: set active on %s/%s: %w", entryType, entryID, err)
	}
	return nil
}

// kindExistenceChecker adapts SQLArchiver to ExistenceChecker for one fixed
// kind, since Classify's checker has no kind parameter of its own.
type kindExistenceChecker struct {
	archiver *SQLArchiver
	kind     string
}

// ExistenceCheckerFor returns the ExistenceChecker to pass to Classify when
// importing a Document of the given kind.
func (a *SQLArchiver) ExistenceCheckerFor(kind string) ExistenceChecker {
	return &kindExistenceChecker{archiver: a, kind: kind}
}

// Exists reports whether entryID is present in this checker's kind's entry
// table, regardless of its active flag, so a reimport can tell create from
// update.
func (c *kindExistenceChecker) Exists(ctx context.Context, entryID string) (bool, error) {
	table, ok := entryTableByKind[c.kind]
	if !ok {
		return false, fmt.Errorf("export: unknown kind %q", c.kind)
	}
	var exists int
	err := c.archiver.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, table), entryID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("export: check existence of %s/%s: %w", c.kind, entryID, err)
	}
	return true, nil
}
