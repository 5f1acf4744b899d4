package permissions

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLStore implements Store against the shared permissions table
// (internal/store/migrations.go). Kept free of a direct internal/store
// import, matching classify.SQLFeedbackStore's pattern of depending only on
// *sql.DB for the one table it needs.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an already-open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// RowsForAgent loads every permission row granted to agentID, in no
// particular order — Checker does its own specificity resolution.
func (s *SQLStore) RowsForAgent(ctx context.Context, agentID string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, COALESCE(scope_type,''), COALESCE(scope_id,''), COALESCE(entry_type,''), COALESCE(entry_id,''), permission
		 FROM permissions WHERE agent_id = ?`, agentID)
	if err != nil {
		return nil, fmt.Errorf("permissions: query rows for %q: %w", agentID, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.AgentID, &r.ScopeType, &r.ScopeID, &r.EntryType, &r.EntryID, &r.Permission); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Grant inserts a new permission row for agentID. Empty scope/entry fields
// act as wildcards at that level, per Checker's specificity resolution.
func (s *SQLStore) Grant(ctx context.Context, row Row) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO permissions (agent_id, scope_type, scope_id, entry_type, entry_id, permission) VALUES (?, ?, ?, ?, ?, ?)`,
		row.AgentID, nullIfEmpty(row.ScopeType), nullIfEmpty(row.ScopeID), nullIfEmpty(row.EntryType), nullIfEmpty(row.EntryID), row.Permission)
	if err != nil {
		return fmt.Errorf("permissions: grant: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
