package classify

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"memoryd/internal/store"
)

func openTestFeedbackStore(t *testing.T, maxBoost, maxPenalty, learningRate float64, decayDays int) (*SQLFeedbackStore, *store.Adapter) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "memoryd.db")
	a, err := store.Open(store.Options{Path: dbPath})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return NewSQLFeedbackStore(a.DB(), maxBoost, maxPenalty, learningRate, decayDays), a
}

func TestMultiplierDefaultsToOneWithNoFeedback(t *testing.T) {
	s, _ := openTestFeedbackStore(t, 0.5, 0.5, 0.1, 90)

	mult, err := s.Multiplier(context.Background(), "unknown-pattern")
	if err != nil {
		t.Fatalf("Multiplier() error = %v", err)
	}
	if mult != 1.0 {
		t.Fatalf("Multiplier() = %v, want 1.0", mult)
	}
}

func TestRecordFeedbackNudgesMultiplierUpward(t *testing.T) {
	s, _ := openTestFeedbackStore(t, 0.5, 0.5, 0.2, 90)
	ctx := context.Background()

	if err := s.RecordFeedback(ctx, "tool.command-prefix", true); err != nil {
		t.Fatalf("RecordFeedback() error = %v", err)
	}
	mult, err := s.Multiplier(ctx, "tool.command-prefix")
	if err != nil {
		t.Fatalf("Multiplier() error = %v", err)
	}
	// First positive nudge: 1.0 + 0.2*(0.5-0) = 1.1
	want := 1.1
	if diff := mult - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("Multiplier() = %v, want %v", mult, want)
	}
}

func TestRecordFeedbackNudgesMultiplierDownwardAndConverges(t *testing.T) {
	s, _ := openTestFeedbackStore(t, 0.5, 0.5, 0.5, 90)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := s.RecordFeedback(ctx, "guideline.prescriptive", false); err != nil {
			t.Fatalf("RecordFeedback() error = %v", err)
		}
	}
	mult, err := s.Multiplier(ctx, "guideline.prescriptive")
	if err != nil {
		t.Fatalf("Multiplier() error = %v", err)
	}
	if mult < 1-0.5 {
		t.Fatalf("Multiplier() = %v, must not cross the 1-maxPenalty floor", mult)
	}
	if mult > 0.6 {
		t.Fatalf("Multiplier() = %v, expected repeated negative feedback to converge toward the penalty floor", mult)
	}
}

func TestMultiplierExcludesDecayedFeedback(t *testing.T) {
	s, a := openTestFeedbackStore(t, 0.5, 0.5, 0.5, 1)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	if _, err := a.DB().ExecContext(ctx,
		`INSERT INTO pattern_feedback_log (pattern_id, positive, created_at) VALUES (?, 1, ?)`,
		"knowledge.factual-statement", old); err != nil {
		t.Fatalf("seed old feedback: %v", err)
	}

	mult, err := s.Multiplier(ctx, "knowledge.factual-statement")
	if err != nil {
		t.Fatalf("Multiplier() error = %v", err)
	}
	if mult != 1.0 {
		t.Fatalf("Multiplier() = %v, want 1.0 with only decayed feedback present", mult)
	}

	if err := s.RecordFeedback(ctx, "knowledge.factual-statement", true); err != nil {
		t.Fatalf("RecordFeedback() error = %v", err)
	}
	mult, err = s.Multiplier(ctx, "knowledge.factual-statement")
	if err != nil {
		t.Fatalf("Multiplier() error = %v", err)
	}
	if mult <= 1.0 {
		t.Fatalf("Multiplier() = %v, expected the fresh correction to still count", mult)
	}
}
