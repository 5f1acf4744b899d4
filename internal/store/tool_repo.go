package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ToolPayload is the version-specific content of a Tool artifact.
type ToolPayload struct {
	Name        string
	Description string
	InputSchema string // raw JSON schema, stored verbatim
}

// ToolRepo stores callable-tool descriptors agents discover and invoke.
type ToolRepo struct {
	*envelopeStore[ToolPayload]
}

// NewToolRepo wires a ToolRepo against an already-open Adapter.
func NewToolRepo(adapter *Adapter) *ToolRepo {
	spec := versionSpec[ToolPayload]{
		EntryTable:   "tools",
		VersionTable: "tool_versions",
		EntryType:    "tool",
		Marshal: func(p ToolPayload) ([]string, []interface{}) {
			return []string{"name", "description", "input_schema"}, []interface{}{p.Name, p.Description, p.InputSchema}
		},
		ContentHash: func(p ToolPayload) string {
			return hashPayload([]byte(p.Name + "\x00" + p.Description + "\x00" + p.InputSchema))
		},
		selectColumns: func() []string { return []string{"name", "description", "input_schema"} },
		scanRowInto: func(row *sql.Row, version *int) (ToolPayload, error) {
			var p ToolPayload
			err := row.Scan(version, &p.Name, &p.Description, &p.InputSchema)
			return p, err
		},
	}
	return &ToolRepo{envelopeStore: newEnvelopeStore(adapter, spec)}
}

// GetByName resolves the narrowest-scoped active tool matching name.
func (r *ToolRepo) GetByName(ctx context.Context, name string, scope Scope) (*Envelope[ToolPayload], error) {
	rows, err := r.adapter.db.QueryContext(ctx, `
		SELECT t.id, t.scope_type, t.scope_id, t.current_version_id, t.is_active, t.access_count, t.last_accessed_at, t.created_at
		FROM tools t
		JOIN tool_versions v ON v.id = t.current_version_id
		WHERE v.name = ? AND t.is_active = 1`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*EnvelopeMeta
	for rows.Next() {
		m, err := scanMetaFromRows(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	best := nearestInScopeChain(candidates, scope)
	if best == nil {
		return nil, sql.ErrNoRows
	}
	payload, version, err := r.loadVersion(ctx, best.CurrentVersionID)
	if err != nil {
		return nil, err
	}
	return &Envelope[ToolPayload]{EnvelopeMeta: *best, Version: version, Payload: payload}, nil
}

// List returns active tools visible to scope.
func (r *ToolRepo) List(ctx context.Context, scope Scope, limit, offset int) ([]*Envelope[ToolPayload], error) {
	rows, err := r.adapter.db.QueryContext(ctx, `
		SELECT t.id, t.scope_type, t.scope_id, t.current_version_id, t.is_active, t.access_count, t.last_accessed_at, t.created_at,
		       v.version, v.name, v.description, v.input_schema
		FROM tools t
		JOIN tool_versions v ON v.id = t.current_version_id
		WHERE t.is_active = 1
		ORDER BY t.created_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Envelope[ToolPayload]
	for rows.Next() {
		var env Envelope[ToolPayload]
		var scopeID, currentVersionID sql.NullString
		var isActive int
		var lastAccessed sql.NullTime
		var scopeType string

		err := rows.Scan(&env.ID, &scopeType, &scopeID, &currentVersionID, &isActive, &env.AccessCount, &lastAccessed, &env.CreatedAt,
			&env.Version, &env.Payload.Name, &env.Payload.Description, &env.Payload.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("store: scan tool row: %w", err)
		}
		env.Scope = Scope{Type: ScopeType(scopeType), ID: scopeID.String}
		env.CurrentVersionID = currentVersionID.String
		env.IsActive = isActive != 0
		if lastAccessed.Valid {
			t := lastAccessed.Time
			env.LastAccessedAt = &t
		}
		if scopeVisible(env.Scope, scope) {
			out = append(out, &env)
		}
	}
	return out, rows.Err()
}
