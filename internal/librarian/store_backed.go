package librarian

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"memoryd/internal/store"
)

// FTSClusterer implements Clusterer using the FTS5 bm25 duplicate search
// internal/store already runs for create/update-time duplicate warnings,
// here run pairwise across every entry currently indexed for a kind.
type FTSClusterer struct {
	adapter   *store.Adapter
	threshold float64
	limit     int
}

// NewFTSClusterer builds a Clusterer over adapter's duplicate-search index.
// threshold is the minimum FindDuplicates score for two entries to be
// considered the same cluster (default 0.5); limit bounds how many
// candidates are considered per seed entry (default 20).
func NewFTSClusterer(adapter *store.Adapter, threshold float64, limit int) *FTSClusterer {
	if threshold <= 0 {
		threshold = 0.5
	}
	if limit <= 0 {
		limit = 20
	}
	return &FTSClusterer{adapter: adapter, threshold: threshold, limit: limit}
}

// Cluster groups entryType's indexed entries via a single greedy pass: each
// unvisited entry seeds a cluster from its own FindDuplicates hits above
// threshold, and every member is marked visited so it never seeds or joins
// a second cluster.
func (c *FTSClusterer) Cluster(ctx context.Context, entryType string) ([]Cluster, error) {
	texts, err := c.adapter.ActiveTextByKind(ctx, entryType)
	if err != nil {
		return nil, fmt.Errorf("librarian: list %s text: %w", entryType, err)
	}

	visited := make(map[string]bool, len(texts))
	var clusters []Cluster

	for id, text := range texts {
		if visited[id] || text == "" {
			continue
		}

		candidates, err := c.adapter.FindDuplicates(ctx, entryType, text, c.limit)
		if err != nil {
			return nil, fmt.Errorf("librarian: find duplicates for %s: %w", id, err)
		}

		var members []string
		var total float64
		for _, cand := range candidates {
			if cand.EntryID == id || visited[cand.EntryID] || cand.Score < c.threshold {
				continue
			}
			members = append(members, cand.EntryID)
			total += cand.Score
		}
		if len(members) == 0 {
			continue
		}

		members = append(members, id)
		for _, m := range members {
			visited[m] = true
		}
		clusters = append(clusters, Cluster{
			EntryType: entryType,
			EntryIDs:  members,
			AvgScore:  total / float64(len(members)-1),
		})
	}

	return clusters, nil
}

// recommendationRecord is the JSON shape stored in librarian_recommendations.payload.
type recommendationRecord struct {
	Kind       RecommendationKind `json:"kind"`
	EntryType  string             `json:"entryType"`
	EntryIDs   []string           `json:"entryIds"`
	Rationale  string             `json:"rationale"`
	Confidence float64            `json:"confidence"`
}

// SQLRecommendationStore persists librarian recommendations against the
// librarian_jobs/librarian_recommendations tables.
type SQLRecommendationStore struct {
	db *sql.DB
}

// NewSQLRecommendationStore wires a RecommendationStore against an
// already-open database handle.
func NewSQLRecommendationStore(db *sql.DB) *SQLRecommendationStore {
	return &SQLRecommendationStore{db: db}
}

// SaveRecommendations records a completed job and every recommendation it
// produced in one go, since librarian_recommendations.job_id is a foreign
// key into librarian_jobs.
func (s *SQLRecommendationStore) SaveRecommendations(ctx context.Context, recs []Recommendation) error {
	jobID := uuid.NewString()
	now := time.Now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO librarian_jobs (id, state, steps, started_at, completed_at) VALUES (?, ?, '[]', ?, ?)`,
		jobID, string(RunCompleted), now, now); err != nil {
		return fmt.Errorf("librarian: insert job: %w", err)
	}

	for _, rec := range recs {
		payload, err := json.Marshal(recommendationRecord{
			Kind:       rec.Kind,
			EntryType:  rec.EntryType,
			EntryIDs:   rec.EntryIDs,
			Rationale:  rec.Rationale,
			Confidence: rec.Confidence,
		})
		if err != nil {
			return fmt.Errorf("librarian: marshal recommendation: %w", err)
		}

		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		status := rec.Status
		if status == "" {
			status = StatusPending
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO librarian_recommendations (id, job_id, kind, state, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			id, jobID, string(rec.Kind), string(status), string(payload), now); err != nil {
			return fmt.Errorf("librarian: insert recommendation: %w", err)
		}
	}
	return nil
}

// UpdateStatus transitions one recommendation's approval state.
func (s *SQLRecommendationStore) UpdateStatus(ctx context.Context, id string, status RecommendationStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE librarian_recommendations SET state = ?, decided_at = ? WHERE id = ?`,
		string(status), time.Now(), id)
	if err != nil {
		return fmt.Errorf("librarian: update recommendation status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("librarian: recommendation %q not found", id)
	}
	return nil
}

// ListByStatus returns every recommendation currently in status.
func (s *SQLRecommendationStore) ListByStatus(ctx context.Context, status RecommendationStatus) ([]Recommendation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, payload, created_at FROM librarian_recommendations WHERE state = ? ORDER BY created_at ASC`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("librarian: list recommendations: %w", err)
	}
	defer rows.Close()

	var out []Recommendation
	for rows.Next() {
		var id, state, payload string
		var createdAt time.Time
		if err := rows.Scan(&id, &state, &payload, &createdAt); err != nil {
			return nil, err
		}
		var rec recommendationRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("librarian: unmarshal recommendation %q: %w", id, err)
		}
		out = append(out, Recommendation{
			ID:         id,
			Kind:       rec.Kind,
			EntryType:  rec.EntryType,
			EntryIDs:   rec.EntryIDs,
			Rationale:  rec.Rationale,
			Confidence: rec.Confidence,
			Status:     RecommendationStatus(state),
			CreatedAt:  createdAt,
		})
	}
	return out, rows.Err()
}
