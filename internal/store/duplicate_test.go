package store

import (
	"context"
	"testing"
)

func TestDuplicateIndexAndSearch(t *testing.T) {
	a := openTestAdapter(t)
	ctx := context.Background()

	if err := a.IndexForDuplicateSearch(ctx, "guideline", "g1", "Always back up before migrating", "Take a snapshot before running migrations."); err != nil {
		t.Fatalf("IndexForDuplicateSearch() error = %v", err)
	}
	if err := a.IndexForDuplicateSearch(ctx, "guideline", "g2", "Prefer feature flags", "Roll out behind a flag."); err != nil {
		t.Fatalf("IndexForDuplicateSearch() error = %v", err)
	}

	candidates, err := a.FindDuplicates(ctx, "guideline", "back up before migrating", 5)
	if err != nil {
		t.Fatalf("FindDuplicates() error = %v", err)
	}
	if len(candidates) == 0 {
		t.Fatalf("expected at least one candidate")
	}
	if candidates[0].EntryID != "g1" {
		t.Fatalf("expected g1 to rank first, got %s", candidates[0].EntryID)
	}

	isDup, best := IsDuplicate(candidates, 0.05)
	if !isDup || best == nil {
		t.Fatalf("expected a duplicate match above a low threshold")
	}
}

func TestVectorUpsertAndBruteForceSearch(t *testing.T) {
	a := openTestAdapter(t)
	ctx := context.Background()

	if err := a.UpsertVector(ctx, "knowledge", "k1", "v1", "fake", []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("UpsertVector() error = %v", err)
	}
	if err := a.UpsertVector(ctx, "knowledge", "k2", "v1", "fake", []float32{0, 1, 0, 0}); err != nil {
		t.Fatalf("UpsertVector() error = %v", err)
	}

	matches, err := a.SearchVectors(ctx, []float32{1, 0, 0, 0}, nil, 2)
	if err != nil {
		t.Fatalf("SearchVectors() error = %v", err)
	}
	if len(matches) == 0 || matches[0].EntryID != "k1" {
		t.Fatalf("expected k1 to be the closest match, got %+v", matches)
	}
}
