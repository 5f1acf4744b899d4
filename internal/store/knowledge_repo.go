package store

import (
	"context"
	"database/sql"
)

// KnowledgePayload is the version-specific content of a Knowledge artifact.
type KnowledgePayload struct {
	Title   string
	Content string
	Source  string
}

// KnowledgeRepo stores factual reference material.
type KnowledgeRepo struct {
	*envelopeStore[KnowledgePayload]
}

// NewKnowledgeRepo wires a KnowledgeRepo against an already-open Adapter.
func NewKnowledgeRepo(adapter *Adapter) *KnowledgeRepo {
	spec := versionSpec[KnowledgePayload]{
		EntryTable:   "knowledge_entries",
		VersionTable: "knowledge_versions",
		EntryType:    "knowledge",
		Marshal: func(p KnowledgePayload) ([]string, []interface{}) {
			return []string{"title", "content", "source"}, []interface{}{p.Title, p.Content, p.Source}
		},
		ContentHash: func(p KnowledgePayload) string {
			return hashPayload([]byte(p.Title + "\x00" + p.Content + "\x00" + p.Source))
		},
		selectColumns: func() []string { return []string{"title", "content", "source"} },
		scanRowInto: func(row *sql.Row, version *int) (KnowledgePayload, error) {
			var p KnowledgePayload
			err := row.Scan(version, &p.Title, &p.Content, &p.Source)
			return p, err
		},
	}
	return &KnowledgeRepo{envelopeStore: newEnvelopeStore(adapter, spec)}
}

// List returns active knowledge entries visible to scope.
func (r *KnowledgeRepo) List(ctx context.Context, scope Scope, limit, offset int) ([]*Envelope[KnowledgePayload], error) {
	rows, err := r.adapter.db.QueryContext(ctx, `
		SELECT k.id, k.scope_type, k.scope_id, k.current_version_id, k.is_active, k.access_count, k.last_accessed_at, k.created_at,
		       v.version, v.title, v.content, v.source
		FROM knowledge_entries k
		JOIN knowledge_versions v ON v.id = k.current_version_id
		WHERE k.is_active = 1
		ORDER BY k.created_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Envelope[KnowledgePayload]
	for rows.Next() {
		var env Envelope[KnowledgePayload]
		var scopeID, currentVersionID sql.NullString
		var isActive int
		var lastAccessed sql.NullTime
		var scopeType string

		err := rows.Scan(&env.ID, &scopeType, &scopeID, &currentVersionID, &isActive, &env.AccessCount, &lastAccessed, &env.CreatedAt,
			&env.Version, &env.Payload.Title, &env.Payload.Content, &env.Payload.Source)
		if err != nil {
			return nil, err
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
