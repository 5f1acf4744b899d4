package librarian

import (
	"context"
	"path/filepath"
	"testing"

	"memoryd/internal/store"
)

func openTestStoreAdapter(t *testing.T) *store.Adapter {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "memoryd.db")
	a, err := store.Open(store.Options{Path: dbPath})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestFTSClustererGroupsSimilarEntries(t *testing.T) {
	adapter := openTestStoreAdapter(t)
	ctx := context.Background()

	repo := store.NewGuidelineRepo(adapter)
	scope := store.Scope{Type: "global"}
	for i := 0; i < 3; i++ {
		env, err := repo.Create(ctx, scope, store.GuidelinePayload{
			Title: "always validate user input",
			Body:  "reject requests that fail schema validation before touching storage",
		}, "agent-1")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := adapter.IndexForDuplicateSearch(ctx, "guideline", env.ID, env.Payload.Title, env.Payload.Body); err != nil {
			t.Fatalf("IndexForDuplicateSearch() error = %v", err)
		}
	}

	unrelated, err := repo.Create(ctx, scope, store.GuidelinePayload{
		Title: "rotate API keys quarterly",
		Body:  "unrelated security hygiene guidance about credential rotation",
	}, "agent-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := adapter.IndexForDuplicateSearch(ctx, "guideline", unrelated.ID, unrelated.Payload.Title, unrelated.Payload.Body); err != nil {
		t.Fatalf("IndexForDuplicateSearch() error = %v", err)
	}

	clusterer := NewFTSClusterer(adapter, 0.1, 10)
	clusters, err := clusterer.Cluster(ctx, "guideline")
	if err != nil {
		t.Fatalf("Cluster() error = %v", err)
	}

	found := false
	for _, c := range clusters {
		if len(c.EntryIDs) >= 3 {
			found = true
		}
		for _, id := range c.EntryIDs {
			if id == unrelated.ID {
				t.Fatalf("expected the unrelated guideline to not join the validation cluster")
			}
		}
	}
	if !found {
		t.Fatalf("expected a cluster of at least 3 near-duplicate guidelines, got %+v", clusters)
	}
}

func TestSQLRecommendationStoreRoundTripsStatus(t *testing.T) {
	adapter := openTestStoreAdapter(t)
	ctx := context.Background()
	recStore := NewSQLRecommendationStore(adapter.DB())

	recs := []Recommendation{
		{ID: "rec-1", Kind: KindPromotion, EntryType: "guideline", EntryIDs: []string{"g-1", "g-2"}, Rationale: "recurring pattern", Confidence: 0.8, Status: StatusPending},
	}
	if err := recStore.SaveRecommendations(ctx, recs); err != nil {
		t.Fatalf("SaveRecommendations() error = %v", err)
	}

	pending, err := recStore.ListByStatus(ctx, StatusPending)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "rec-1" {
		t.Fatalf("ListByStatus(pending) = %+v, want one rec-1 entry", pending)
	}

	if err := recStore.UpdateStatus(ctx, "rec-1", StatusApproved); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	pending, err = recStore.ListByStatus(ctx, StatusPending)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("ListByStatus(pending) after approval = %+v, want empty", pending)
	}

	approved, err := recStore.ListByStatus(ctx, StatusApproved)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(approved) != 1 || approved[0].Confidence != 0.8 {
		t.Fatalf("ListByStatus(approved) = %+v, want one rec-1 entry with confidence 0.8", approved)
	}
}

func TestSQLRecommendationStoreUpdateStatusMissingIDErrors(t *testing.T) {
	adapter := openTestStoreAdapter(t)
	recStore := NewSQLRecommendationStore(adapter.DB())

	if err := recStore.UpdateStatus(context.Background(), "missing", StatusApproved); err == nil {
		t.Fatalf("expected an error updating a nonexistent recommendation")
	}
}
