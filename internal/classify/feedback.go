package classify

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLFeedbackStore implements FeedbackStore against the shared
// pattern_confidence and pattern_feedback_log tables
// (internal/store/migrations.go). It is kept free of a direct
// internal/store import so classify has no dependency on the storage
// package's generic envelope machinery it does not need.
type SQLFeedbackStore struct {
	db *sql.DB

	maxBoost      float64
	maxPenalty    float64
	learningRate  float64
	decayDuration time.Duration
}

// NewSQLFeedbackStore wraps an already-open database handle. maxBoost and
// maxPenalty bound the multiplier to [1-maxPenalty, 1+maxBoost]; learningRate
// scales how far a single correction nudges it toward that bound;
// decayDays excludes corrections older than that many days from the
// recomputed multiplier.
func NewSQLFeedbackStore(db *sql.DB, maxBoost, maxPenalty, learningRate float64, decayDays int) *SQLFeedbackStore {
	return &SQLFeedbackStore{
		db:            db,
		maxBoost:      maxBoost,
		maxPenalty:    maxPenalty,
		learningRate:  learningRate,
		decayDuration: time.Duration(decayDays) * 24 * time.Hour,
	}
}

// Multiplier returns the current confidence multiplier for a pattern,
// folding every non-decayed correction in pattern_feedback_log in
// chronological order: each positive correction nudges the multiplier up
// toward 1+maxBoost, each negative correction nudges it down toward
// 1-maxPenalty, by learningRate times the remaining room to that bound.
// Corrections older than the configured decay window are excluded, so a
// pattern's multiplier tracks only its recent track record.
func (s *SQLFeedbackStore) Multiplier(ctx context.Context, patternID string) (float64, error) {
	events, err := s.recentEvents(ctx, patternID)
	if err != nil {
		return 1.0, err
	}
	return s.fold(events), nil
}

type feedbackEvent struct {
	positive bool
}

func (s *SQLFeedbackStore) recentEvents(ctx context.Context, patternID string) ([]feedbackEvent, error) {
	cutoff := time.Now().UTC()
	if s.decayDuration > 0 {
		cutoff = cutoff.Add(-s.decayDuration)
	} else {
		cutoff = time.Time{}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT positive FROM pattern_feedback_log WHERE pattern_id = ? AND created_at >= ? ORDER BY created_at ASC, id ASC`,
		patternID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("classify: load pattern feedback log: %w", err)
	}
	defer rows.Close()

	var events []feedbackEvent
	for rows.Next() {
		var positive int
		if err := rows.Scan(&positive); err != nil {
			return nil, fmt.Errorf("classify: scan pattern feedback row: %w", err)
		}
		events = append(events, feedbackEvent{positive: positive != 0})
	}
	return events, rows.Err()
}

// fold replays events in order against a multiplier starting at 1.0, applying
// the nudge-toward-bound formula: upward nudges shrink as the multiplier
// nears maxBoost, downward nudges shrink as it nears 1-maxPenalty, so
// repeated same-direction feedback converges rather than overshooting.
func (s *SQLFeedbackStore) fold(events []feedbackEvent) float64 {
	mult := 1.0
	for _, ev := range events {
		if ev.positive {
			currentBoost := mult - 1.0
			if currentBoost < 0 {
				currentBoost = 0
			}
			mult += s.learningRate * (s.maxBoost - currentBoost)
		} else {
			currentPenalty := 1.0 - mult
			if currentPenalty < 0 {
				currentPenalty = 0
			}
			remaining := s.maxPenalty - currentPenalty
			mult -= s.learningRate * remaining
		}
		mult = clamp(mult, 1-s.maxPenalty, 1+s.maxBoost)
	}
	return mult
}

// RecordFeedback appends a timestamped correction to the pattern's feedback
// log and refreshes pattern_confidence's cached aggregate counters and
// multiplier, so Stats/inspection queries against pattern_confidence stay
// in sync with what Multiplier would compute.
func (s *SQLFeedbackStore) RecordFeedback(ctx context.Context, patternID string, positive bool) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO pattern_feedback_log (pattern_id, positive, created_at) VALUES (?, ?, ?)`,
		patternID, boolToInt(positive), time.Now().UTC()); err != nil {
		return fmt.Errorf("classify: record feedback: %w", err)
	}

	mult, err := s.Multiplier(ctx, patternID)
	if err != nil {
		return err
	}

	col := "negative_count"
	if positive {
		col = "positive_count"
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO pattern_confidence (pattern_id, feedback_multiplier, positive_count, negative_count)
		VALUES (?, ?, 0, 0)
		ON CONFLICT(pattern_id) DO NOTHING`, patternID, mult); err != nil {
		return fmt.Errorf("classify: ensure pattern row: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE pattern_confidence SET feedback_multiplier = ?, %s = %s + 1 WHERE pattern_id = ?`, col, col),
		mult, patternID); err != nil {
		return fmt.Errorf("classify: update pattern confidence: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
