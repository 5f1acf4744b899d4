package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"memoryd/internal/logging"
)

// vecIndexInitialized tracks whether the ANN virtual table has been created
// for the dimension currently in use; sqlite-vec fixes the vector width at
// table-creation time, so it must be recreated on a dimension change.
var vecIndexDim = map[*Adapter]int{}

// EnsureVecIndex creates the ANN virtual table for dim, a no-op when the
// extension is unavailable or already initialized at that width.
func (a *Adapter) EnsureVecIndex(dim int) error {
	if !a.vectorExt {
		return nil
	}
	if vecIndexDim[a] == dim {
		return nil
	}
	_, err := a.db.Exec(fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_index USING vec0(embedding float[%d], entry_type TEXT, entry_id TEXT)`, dim))
	if err != nil {
		return fmt.Errorf("store: create vec_index: %w", err)
	}
	vecIndexDim[a] = dim
	return nil
}

func encodeFloat32Slice(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloat32Slice(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// UpsertVector stores (or replaces) the embedding for an artifact version,
// writing both the JSON fallback row and, when available, the ANN index.
func (a *Adapter) UpsertVector(ctx context.Context, entryType, entryID, versionID, model string, vector []float32) error {
	payload, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("store: marshal embedding: %w", err)
	}

	if _, err := a.db.ExecContext(ctx, `
		INSERT INTO vectors (entry_type, entry_id, version_id, model, dim, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_type, entry_id) DO UPDATE SET
			version_id = excluded.version_id, model = excluded.model,
			dim = excluded.dim, embedding = excluded.embedding, created_at = excluded.created_at`,
		entryType, entryID, versionID, model, len(vector), string(payload), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("store: upsert vector row: %w", err)
	}

	if a.vectorExt {
		if err := a.EnsureVecIndex(len(vector)); err == nil {
			a.db.ExecContext(ctx, `DELETE FROM vec_index WHERE entry_type = ? AND entry_id = ?`, entryType, entryID)
			if _, err := a.db.ExecContext(ctx,
				`INSERT INTO vec_index (embedding, entry_type, entry_id) VALUES (?, ?, ?)`,
				encodeFloat32Slice(vector), entryType, entryID,
			); err != nil {
				logging.Get(logging.CategoryStore).Warn("vec_index insert failed, JSON fallback remains authoritative: %v", err)
			}
		}
	}
	return nil
}

// VectorMatch is one ranked search result.
type VectorMatch struct {
	EntryType string
	EntryID   string
	Score     float64
}

// SearchVectors finds the topK nearest neighbors to query across the given
// entry types (all types when empty), using the ANN index when available
// and falling back to brute-force cosine similarity otherwise.
func (a *Adapter) SearchVectors(ctx context.Context, query []float32, entryTypes []string, topK int) ([]VectorMatch, error) {
	if a.vectorExt {
		matches, err := a.searchVectorsANN(ctx, query, entryTypes, topK)
		if err == nil {
			return matches, nil
		}
		logging.Get(logging.CategoryStore).Warn("ANN search failed, falling back to brute force: %v", err)
	}
	return a.searchVectorsBruteForce(ctx, query, entryTypes, topK)
}

func (a *Adapter) searchVectorsANN(ctx context.Context, query []float32, entryTypes []string, topK int) ([]VectorMatch, error) {
	if err := a.EnsureVecIndex(len(query)); err != nil {
		return nil, err
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT entry_type, entry_id, vec_distance_cosine(embedding, ?) AS distance
		FROM vec_index
		ORDER BY distance ASC
		LIMIT ?`, encodeFloat32Slice(query), topK*4)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VectorMatch
	for rows.Next() {
		var m VectorMatch
		var distance float64
		if err := rows.Scan(&m.EntryType, &m.EntryID, &distance); err != nil {
			return nil, err
		}
		if !typeAllowed(m.EntryType, entryTypes) {
			continue
		}
		m.Score = 1 - distance
		out = append(out, m)
		if len(out) >= topK {
			break
		}
	}
	return out, rows.Err()
}

func (a *Adapter) searchVectorsBruteForce(ctx context.Context, query []float32, entryTypes []string, topK int) ([]VectorMatch, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT entry_type, entry_id, embedding FROM vectors`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []VectorMatch
	for rows.Next() {
		var entryType, entryID, embeddingJSON string
		if err := rows.Scan(&entryType, &entryID, &embeddingJSON); err != nil {
			return nil, err
		}
		if !typeAllowed(entryType, entryTypes) {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &vec); err != nil {
			continue
		}
		all = append(all, VectorMatch{EntryType: entryType, EntryID: entryID, Score: cosineSimilarity32(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > topK {
		all = all[:topK]
	}
	return all, nil
}

func typeAllowed(entryType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, t := range allowed {
		if t == entryType {
			return true
		}
	}
	return false
}

func cosineSimilarity32(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// VectorDimension returns the dimension recorded against the most recently
// stored embedding, or 0 if none exist yet. Used by the re-embed service to
// detect a provider switch.
func (a *Adapter) VectorDimension(ctx context.Context) (int, error) {
	var dim sql.NullInt64
	err := a.db.QueryRowContext(ctx, `SELECT dim FROM vectors ORDER BY created_at DESC LIMIT 1`).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(dim.Int64), nil
}

// VectorRow is a stored embedding's identity, used by the re-embed batch
// walker.
type VectorRow struct {
	EntryType string
	EntryID   string
	VersionID string
	Model     string
}

// ListVectors pages through stored vectors, oldest first, for batch
// re-embedding.
func (a *Adapter) ListVectors(ctx context.Context, offset, limit int) ([]VectorRow, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT entry_type, entry_id, version_id, model FROM vectors ORDER BY created_at ASC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VectorRow
	for rows.Next() {
		var v VectorRow
		if err := rows.Scan(&v.EntryType, &v.EntryID, &v.VersionID, &v.Model); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountVectors reports how many embeddings are currently stored.
func (a *Adapter) CountVectors(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&n)
	return n, err
}
