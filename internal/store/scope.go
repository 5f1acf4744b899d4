package store

import "database/sql"

// scanMetaFromRows mirrors scanMeta but reads from a *sql.Rows cursor
// instead of a single *sql.Row, used while walking scope-chain candidates.
func scanMetaFromRows(rows *sql.Rows) (*EnvelopeMeta, error) {
	var m EnvelopeMeta
	var scopeID sql.NullString
	var currentVersionID sql.NullString
	var isActive int
	var lastAccessed sql.NullTime
	var scopeType string

	if err := rows.Scan(&m.ID, &scopeType, &scopeID, &currentVersionID, &isActive, &m.AccessCount, &lastAccessed, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Scope = Scope{Type: ScopeType(scopeType), ID: scopeID.String}
	m.CurrentVersionID = currentVersionID.String
	m.IsActive = isActive != 0
	if lastAccessed.Valid {
		t := lastAccessed.Time
		m.LastAccessedAt = &t
	}
	return &m, nil
}

// scopeVisible reports whether an artifact scoped to candidateScope is
// visible from requestScope: global artifacts are visible everywhere, and
// any other scope is visible only to an exact match or a narrower scope
// nested under it (same type+id, or a descendant scope carrying the same
// id convention — callers pass the fully-resolved requestScope so this is a
// straightforward equality/global check).
func scopeVisible(candidate, request Scope) bool {
	if candidate.Type == ScopeGlobal {
		return true
	}
	return candidate.Type == request.Type && candidate.ID == request.ID
}

// nearestInScopeChain picks the candidate whose scope is narrowest while
// still being visible from requestScope — i.e. highest scopeRank among
// those that are global or an exact match. This implements the "most
// specific wins, broader scopes act as fallback" resolution rule.
func nearestInScopeChain(candidates []*EnvelopeMeta, request Scope) *EnvelopeMeta {
	var best *EnvelopeMeta
	bestRank := -1
	for _, c := range candidates {
		if !scopeVisible(c.Scope, request) {
			continue
		}
		rank := scopeRank[c.Scope.Type]
		if rank > bestRank {
			best = c
			bestRank = rank
		}
	}
	return best
}
