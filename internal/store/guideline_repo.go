package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// GuidelinePayload is the version-specific content of a Guideline artifact.
type GuidelinePayload struct {
	Title    string
	Body     string
	RedFlags []string
}

// GuidelineRepo stores prescriptive rules agents should follow.
type GuidelineRepo struct {
	*envelopeStore[GuidelinePayload]
}

// NewGuidelineRepo wires a GuidelineRepo against an already-open Adapter.
func NewGuidelineRepo(adapter *Adapter) *GuidelineRepo {
	spec := versionSpec[GuidelinePayload]{
		EntryTable:   "guidelines",
		VersionTable: "guideline_versions",
		EntryType:    "guideline",
		Marshal: func(p GuidelinePayload) ([]string, []interface{}) {
			redFlags, _ := json.Marshal(p.RedFlags)
			return []string{"title", "body", "red_flags"}, []interface{}{p.Title, p.Body, string(redFlags)}
		},
		ContentHash: func(p GuidelinePayload) string {
			redFlags, _ := json.Marshal(p.RedFlags)
			return hashPayload([]byte(p.Title + "\x00" + p.Body + "\x00" + string(redFlags)))
		},
		selectColumns: func() []string { return []string{"title", "body", "red_flags"} },
		scanRowInto: func(row *sql.Row, version *int) (GuidelinePayload, error) {
			var p GuidelinePayload
			var redFlags string
			if err := row.Scan(version, &p.Title, &p.Body, &redFlags); err != nil {
				return p, err
			}
			json.Unmarshal([]byte(redFlags), &p.RedFlags)
			return p, nil
		},
	}
	return &GuidelineRepo{envelopeStore: newEnvelopeStore(adapter, spec)}
}

// GetByTitle resolves the narrowest-scoped active guideline matching title,
// walking the scope chain from the requested scope outward to global.
func (r *GuidelineRepo) GetByTitle(ctx context.Context, title string, scope Scope) (*Envelope[GuidelinePayload], error) {
	rows, err := r.adapter.db.QueryContext(ctx, `
		SELECT g.id, g.scope_type, g.scope_id, g.current_version_id, g.is_active, g.access_count, g.last_accessed_at, g.created_at
		FROM guidelines g
		JOIN guideline_versions v ON v.id = g.current_version_id
		WHERE v.title = ? AND g.is_active = 1`, title)
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
	return &Envelope[GuidelinePayload]{EnvelopeMeta: *best, Version: version, Payload: payload}, nil
}

// List returns active guidelines visible to scope, narrowest-scope first.
func (r *GuidelineRepo) List(ctx context.Context, scope Scope, limit, offset int) ([]*Envelope[GuidelinePayload], error) {
	rows, err := r.adapter.db.QueryContext(ctx, `
		SELECT g.id, g.scope_type, g.scope_id, g.current_version_id, g.is_active, g.access_count, g.last_accessed_at, g.created_at,
		       v.version, v.title, v.body, v.red_flags
		FROM guidelines g
		JOIN guideline_versions v ON v.id = g.current_version_id
		WHERE g.is_active = 1
		ORDER BY g.created_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Envelope[GuidelinePayload]
	for rows.Next() {
		env, err := scanGuidelineRow(rows)
		if err != nil {
			return nil, err
		}
		if scopeVisible(env.Scope, scope) {
			out = append(out, env)
		}
	}
	return out, rows.Err()
}

func scanGuidelineRow(rows *sql.Rows) (*Envelope[GuidelinePayload], error) {
	var env Envelope[GuidelinePayload]
	var scopeID sql.NullString
	var currentVersionID sql.NullString
	var isActive int
	var lastAccessed sql.NullTime
	var scopeType string
	var redFlags string

	err := rows.Scan(&env.ID, &scopeType, &scopeID, &currentVersionID, &isActive, &env.AccessCount, &lastAccessed, &env.CreatedAt,
		&env.Version, &env.Payload.Title, &env.Payload.Body, &redFlags)
	if err != nil {
		return nil, fmt.Errorf("store: scan guideline row: %w", err)
	}
	env.Scope = Scope{Type: ScopeType(scopeType), ID: scopeID.String}
	env.CurrentVersionID = currentVersionID.String
	env.IsActive = isActive != 0
	if lastAccessed.Valid {
		t := lastAccessed.Time
		env.LastAccessedAt = &t
	}
	json.Unmarshal([]byte(redFlags), &env.Payload.RedFlags)
	return &env, nil
}
