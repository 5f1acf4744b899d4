package store

import (
	"context"
	"database/sql"
	"testing"
)

func TestGuidelineRepoCreateUpdateHistory(t *testing.T) {
	a := openTestAdapter(t)
	repo := NewGuidelineRepo(a)
	ctx := context.Background()

	scope := Scope{Type: ScopeProject, ID: "proj-1"}
	env, err := repo.Create(ctx, scope, GuidelinePayload{
		Title: "Always confirm destructive actions", Body: "Ask before rm -rf.",
		RedFlags: []string{"rm -rf", "DROP TABLE"},
	}, "agent-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if env.Version != 1 {
		t.Fatalf("Version = %d, want 1", env.Version)
	}

	updated, err := repo.Update(ctx, env.ID, GuidelinePayload{
		Title: env.Payload.Title, Body: "Ask before rm -rf or force-push.",
		RedFlags: append(env.Payload.RedFlags, "git push --force"),
	}, "agent-1")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("Version after update = %d, want 2", updated.Version)
	}
	if len(updated.Payload.RedFlags) != 3 {
		t.Fatalf("RedFlags = %v, want 3 entries", updated.Payload.RedFlags)
	}

	history, err := repo.GetHistory(ctx, env.ID)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %v, want 2 versions", history)
	}

	fetched, err := repo.GetByTitle(ctx, env.Payload.Title, scope)
	if err != nil {
		t.Fatalf("GetByTitle() error = %v", err)
	}
	if fetched.ID != env.ID {
		t.Fatalf("GetByTitle returned wrong entry")
	}
}

func TestGuidelineRepoDeactivateHidesFromGetByTitle(t *testing.T) {
	a := openTestAdapter(t)
	repo := NewGuidelineRepo(a)
	ctx := context.Background()

	scope := Scope{Type: ScopeGlobal}
	env, err := repo.Create(ctx, scope, GuidelinePayload{Title: "Prefer small commits", Body: "..."}, "agent-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.SetActive(ctx, env.ID, false); err != nil {
		t.Fatalf("SetActive(false) error = %v", err)
	}

	_, err = repo.GetByTitle(ctx, env.Payload.Title, scope)
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows after deactivation, got %v", err)
	}
}

func TestGuidelineScopeChainResolutionPrefersNarrowest(t *testing.T) {
	a := openTestAdapter(t)
	repo := NewGuidelineRepo(a)
	ctx := context.Background()

	title := "Use structured logging"
	if _, err := repo.Create(ctx, Scope{Type: ScopeGlobal}, GuidelinePayload{Title: title, Body: "global version"}, "sys"); err != nil {
		t.Fatalf("create global: %v", err)
	}
	if _, err := repo.Create(ctx, Scope{Type: ScopeProject, ID: "proj-1"}, GuidelinePayload{Title: title, Body: "project version"}, "sys"); err != nil {
		t.Fatalf("create project: %v", err)
	}

	resolved, err := repo.GetByTitle(ctx, title, Scope{Type: ScopeProject, ID: "proj-1"})
	if err != nil {
		t.Fatalf("GetByTitle() error = %v", err)
	}
	if resolved.Payload.Body != "project version" {
		t.Fatalf("expected narrowest scope to win, got %q", resolved.Payload.Body)
	}

	resolvedOther, err := repo.GetByTitle(ctx, title, Scope{Type: ScopeProject, ID: "other-project"})
	if err != nil {
		t.Fatalf("GetByTitle() error = %v", err)
	}
	if resolvedOther.Payload.Body != "global version" {
		t.Fatalf("expected fallback to global for unrelated project, got %q", resolvedOther.Payload.Body)
	}
}
