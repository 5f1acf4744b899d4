package export

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"memoryd/internal/store"
)

func openTestArchiverAdapter(t *testing.T) *store.Adapter {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "memoryd.db")
	a, err := store.Open(store.Options{Path: dbPath})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestSQLArchiverListsStaleCandidatesAndSkipsFresh(t *testing.T) {
	adapter := openTestArchiverAdapter(t)
	ctx := context.Background()
	repo := store.NewGuidelineRepo(adapter)
	scope := store.Scope{Type: "global"}

	stale, err := repo.Create(ctx, scope, store.GuidelinePayload{Title: "old rule", Body: "rarely touched"}, "agent-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	fresh, err := repo.Create(ctx, scope, store.GuidelinePayload{Title: "new rule", Body: "just created"}, "agent-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	archiver := NewSQLArchiver(adapter.DB())
	cutoff := time.Now().Add(24 * time.Hour)

	candidates, err := archiver.ListStaleCandidates(ctx, cutoff, 10)
	if err != nil {
		t.Fatalf("ListStaleCandidates() error = %v", err)
	}

	seen := map[string]bool{}
	for _, c := range candidates {
		seen[c.EntryID] = true
	}
	if !seen[stale.ID] {
		t.Fatalf("expected %s among stale candidates, got %+v", stale.ID, candidates)
	}
	if !seen[fresh.ID] {
		t.Fatalf("expected %s among stale candidates since cutoff is in the future, got %+v", fresh.ID, candidates)
	}

	pastCutoff := time.Now().Add(-24 * time.Hour)
	noneYet, err := archiver.ListStaleCandidates(ctx, pastCutoff, 10)
	if err != nil {
		t.Fatalf("ListStaleCandidates() error = %v", err)
	}
	if len(noneYet) != 0 {
		t.Fatalf("ListStaleCandidates(past cutoff) = %+v, want none yet (both entries just created)", noneYet)
	}
}

func TestSQLArchiverRecordArchivedAndSetActive(t *testing.T) {
	adapter := openTestArchiverAdapter(t)
	ctx := context.Background()
	repo := store.NewGuidelineRepo(adapter)
	scope := store.Scope{Type: "global"}

	env, err := repo.Create(ctx, scope, store.GuidelinePayload{Title: "to archive", Body: "body"}, "agent-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	archiver := NewSQLArchiver(adapter.DB())
	if err := archiver.RecordArchived(ctx, "guideline", env.ID, time.Now()); err != nil {
		t.Fatalf("RecordArchived() error = %v", err)
	}
	if err := archiver.SetActive(ctx, "guideline", env.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	got, err := repo.GetByID(ctx, env.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.IsActive {
		t.Fatalf("expected entry to be deactivated after SetActive(false)")
	}
}

func TestSQLArchiverExistenceCheckerForDistinguishesKnownFromUnknown(t *testing.T) {
	adapter := openTestArchiverAdapter(t)
	ctx := context.Background()
	repo := store.NewGuidelineRepo(adapter)
	scope := store.Scope{Type: "global"}

	env, err := repo.Create(ctx, scope, store.GuidelinePayload{Title: "known", Body: "body"}, "agent-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	archiver := NewSQLArchiver(adapter.DB())
	checker := archiver.ExistenceCheckerFor("guideline")

	exists, err := checker.Exists(ctx, env.ID)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Fatalf("expected %s to exist", env.ID)
	}

	exists, err = checker.Exists(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Fatalf("expected unknown entry id to not exist")
	}
}
