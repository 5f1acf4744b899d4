package store

import (
	"context"
	"fmt"
)

// DuplicateCandidate is one near-duplicate match surfaced by the FTS5
// bm25() ranking.
type DuplicateCandidate struct {
	EntryID string
	Score   float64 // normalized to [0,1], higher is more similar
}

var ftsTableByKind = map[string]string{
	"guideline":  "guidelines_fts",
	"tool":       "tools_fts",
	"knowledge":  "knowledge_fts",
	"experience": "experiences_fts",
}

// IndexForDuplicateSearch (re)writes an entry's searchable text into its
// kind's FTS5 table. Called by the repositories after every Create/Update so
// the duplicate index never drifts from the current version.
func (a *Adapter) IndexForDuplicateSearch(ctx context.Context, kind, entryID string, fields ...string) error {
	table, ok := ftsTableByKind[kind]
	if !ok {
		return fmt.Errorf("store: unknown kind %q for duplicate indexing", kind)
	}

	if _, err := a.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE entry_id = ?`, table), entryID); err != nil {
		return fmt.Errorf("store: clear fts row: %w", err)
	}

	cols := "entry_id"
	placeholders := "?"
	args := []interface{}{entryID}
	colNames := ftsColumnsByKind[kind]
	for i, v := range fields {
		if i >= len(colNames) {
			break
		}
		cols += ", " + colNames[i]
		placeholders += ", ?"
		args = append(args, v)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, cols, placeholders)
	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: insert fts row: %w", err)
	}
	return nil
}

var ftsColumnsByKind = map[string][]string{
	"guideline":  {"title", "body"},
	"tool":       {"name", "description"},
	"knowledge":  {"title", "content"},
	"experience": {"title", "outcome"},
}

// FindDuplicates returns candidates for kind ranked by bm25() relevance to
// text, normalized to [0,1] via 1/(1+bm25) (bm25() returns a cost where
// lower is better, hence the inversion).
func (a *Adapter) FindDuplicates(ctx context.Context, kind, text string, limit int) ([]DuplicateCandidate, error) {
	table, ok := ftsTableByKind[kind]
	if !ok {
		return nil, fmt.Errorf("store: unknown kind %q for duplicate search", kind)
	}

	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT entry_id, bm25(%s) AS rank FROM %s WHERE %s MATCH ? ORDER BY rank LIMIT ?`,
		table, table, table), text, limit)
	if err != nil {
		return nil, fmt.Errorf("store: fts query: %w", err)
	}
	defer rows.Close()

	var out []DuplicateCandidate
	for rows.Next() {
		var entryID string
		var rank float64
		if err := rows.Scan(&entryID, &rank); err != nil {
			return nil, err
		}
		score := 1 / (1 + rank)
		if rank < 0 {
			// bm25() returns negative scores in sqlite's FTS5 (more
			// negative is a better match); normalize so higher score
			// still means more similar regardless of sign convention.
			score = 1 / (1 + (-rank))
		}
		out = append(out, DuplicateCandidate{EntryID: entryID, Score: score})
	}
	return out, rows.Err()
}

// ActiveTextByKind returns every indexed entry's id mapped to its
// concatenated searchable text, used by the librarian's clusterer to run
// FindDuplicates pairwise across a whole kind instead of one query at a
// time.
func (a *Adapter) ActiveTextByKind(ctx context.Context, kind string) (map[string]string, error) {
	table, ok := ftsTableByKind[kind]
	if !ok {
		return nil, fmt.Errorf("store: unknown kind %q for cluster scan", kind)
	}
	cols := ftsColumnsByKind[kind]

	textExpr := "''"
	for _, col := range cols {
		textExpr += " || ' ' || " + col
	}
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(`SELECT entry_id, (%s) FROM %s`, textExpr, table))
	if err != nil {
		return nil, fmt.Errorf("store: scan %s for clustering: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, err
		}
		out[id] = text
	}
	return out, rows.Err()
}

// IsDuplicate reports whether the best FindDuplicates candidate clears
// threshold (spec default 0.9).
func IsDuplicate(candidates []DuplicateCandidate, threshold float64) (bool, *DuplicateCandidate) {
	if len(candidates) == 0 {
		return false, nil
	}
	best := candidates[0]
	return best.Score >= threshold, &best
}
