package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"memoryd/internal/store"
	"memoryd/internal/validate"
)

type notePayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fakeRepo struct {
	entries map[string]*store.Envelope[notePayload]
	order   []string
	nextID  int
	access  map[string]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{entries: map[string]*store.Envelope[notePayload]{}, access: map[string]int{}}
}

func (f *fakeRepo) Create(ctx context.Context, scope store.Scope, payload notePayload, createdBy string) (*store.Envelope[notePayload], error) {
	f.nextID++
	id := fmt.Sprintf("note-%d", f.nextID)
	env := &store.Envelope[notePayload]{
		EnvelopeMeta: store.EnvelopeMeta{ID: id, Scope: scope, IsActive: true},
		Version:      1,
		Payload:      payload,
	}
	f.entries[id] = env
	f.order = append(f.order, id)
	return env, nil
}

func (f *fakeRepo) Update(ctx context.Context, entryID string, payload notePayload, updatedBy string) (*store.Envelope[notePayload], error) {
	env, ok := f.entries[entryID]
	if !ok {
		return nil, fmt.Errorf("not found: %s", entryID)
	}
	env.Payload = payload
	env.Version++
	return env, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, entryID string) (*store.Envelope[notePayload], error) {
	env, ok := f.entries[entryID]
	if !ok {
		return nil, fmt.Errorf("not found: %s", entryID)
	}
	return env, nil
}

func (f *fakeRepo) GetHistory(ctx context.Context, entryID string) ([]int, error) {
	env, ok := f.entries[entryID]
	if !ok {
		return nil, fmt.Errorf("not found: %s", entryID)
	}
	versions := make([]int, env.Version)
	for i := range versions {
		versions[i] = i + 1
	}
	return versions, nil
}

func (f *fakeRepo) SetActive(ctx context.Context, entryID string, active bool) error {
	env, ok := f.entries[entryID]
	if !ok {
		return fmt.Errorf("not found: %s", entryID)
	}
	env.IsActive = active
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, entryID string) error {
	if _, ok := f.entries[entryID]; !ok {
		return fmt.Errorf("not found: %s", entryID)
	}
	delete(f.entries, entryID)
	return nil
}

func (f *fakeRepo) List(ctx context.Context, scope store.Scope, limit, offset int) ([]*store.Envelope[notePayload], error) {
	var active []*store.Envelope[notePayload]
	for _, id := range f.order {
		env := f.entries[id]
		if env != nil && env.IsActive {
			active = append(active, env)
		}
	}
	if offset >= len(active) {
		return nil, nil
	}
	end := offset + limit
	if end > len(active) {
		end = len(active)
	}
	return active[offset:end], nil
}

func (f *fakeRepo) RecordAccess(entryID string) {
	f.access[entryID]++
}

// fakeCursorCodec encodes the resume offset directly as the cursor string,
// enough fidelity to exercise List's resume/hasMore wiring without pulling
// in the real JWT-backed codec.
type fakeCursorCodec struct{}

func (fakeCursorCodec) ResolveOffset(ctx context.Context, kind string, scope store.Scope, token string) (int, error) {
	var offset int
	if _, err := fmt.Sscanf(token, "offset:%d", &offset); err != nil {
		return 0, fmt.Errorf("bad cursor: %q", token)
	}
	return offset, nil
}

func (fakeCursorCodec) Issue(ctx context.Context, kind string, scope store.Scope, offset int) (string, error) {
	return fmt.Sprintf("offset:%d", offset), nil
}

func requireNoValidationErrors(payload notePayload) validate.Errors {
	var errs validate.Errors
	errs = validate.Required(errs, "title", payload.Title)
	return errs
}

func TestAddCreatesEnvelopeAndRejectsInvalidPayload(t *testing.T) {
	repo := newFakeRepo()
	f := NewFactory[notePayload]("note", repo, WithValidator(requireNoValidationErrors))

	raw := json.RawMessage(`{"scope":{"scopeType":"project","scopeId":"p1"},"payload":{"title":"t","body":"b"},"createdBy":"agent-1"}`)
	result, err := f.Add(context.Background(), raw)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	env, ok := result.(*store.Envelope[notePayload])
	if !ok || env.Payload.Title != "t" {
		t.Fatalf("result = %+v, want created envelope", result)
	}

	badRaw := json.RawMessage(`{"scope":{"scopeType":"project","scopeId":"p1"},"payload":{"title":"","body":"b"}}`)
	if _, err := f.Add(context.Background(), badRaw); err == nil {
		t.Fatalf("expected validation error for empty title")
	}
}

func TestGetRecordsAccess(t *testing.T) {
	repo := newFakeRepo()
	f := NewFactory[notePayload]("note", repo)

	env, _ := repo.Create(context.Background(), store.Scope{Type: store.ScopeGlobal}, notePayload{Title: "t"}, "agent-1")

	raw := json.RawMessage(fmt.Sprintf(`{"entryId":%q}`, env.ID))
	if _, err := f.Get(context.Background(), raw); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if repo.access[env.ID] != 1 {
		t.Fatalf("access count = %d, want 1", repo.access[env.ID])
	}
}

func TestDeactivateDefaultsToFalse(t *testing.T) {
	repo := newFakeRepo()
	f := NewFactory[notePayload]("note", repo)
	env, _ := repo.Create(context.Background(), store.Scope{Type: store.ScopeGlobal}, notePayload{Title: "t"}, "agent-1")

	raw := json.RawMessage(fmt.Sprintf(`{"entryId":%q}`, env.ID))
	if _, err := f.Deactivate(context.Background(), raw); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if repo.entries[env.ID].IsActive {
		t.Fatalf("expected entry to be deactivated")
	}
}

func TestPermissionCheckerBlocksAdd(t *testing.T) {
	repo := newFakeRepo()
	denyAll := func(ctx context.Context, kind, op string, scope store.Scope) error {
		return fmt.Errorf("denied: %s.%s", kind, op)
	}
	f := NewFactory[notePayload]("note", repo, WithPermissionChecker[notePayload](denyAll))

	raw := json.RawMessage(`{"scope":{"scopeType":"global"},"payload":{"title":"t"}}`)
	if _, err := f.Add(context.Background(), raw); err == nil {
		t.Fatalf("expected permission checker to deny the add")
	}
}

func TestBulkAddReportsPerItemOutcome(t *testing.T) {
	repo := newFakeRepo()
	f := NewFactory[notePayload]("note", repo, WithValidator(requireNoValidationErrors))

	raw := json.RawMessage(`{"items":[
		{"scope":{"scopeType":"global"},"payload":{"title":"ok"}},
		{"scope":{"scopeType":"global"},"payload":{"title":""}}
	]}`)
	result, err := f.BulkAdd(context.Background(), raw)
	if err != nil {
		t.Fatalf("BulkAdd() error = %v", err)
	}
	bulk, ok := result.(*BulkResult)
	if !ok {
		t.Fatalf("result type = %T, want *BulkResult", result)
	}
	if bulk.Succeeded != 1 || bulk.Failed != 1 {
		t.Fatalf("bulk = %+v, want 1 succeeded and 1 failed", bulk)
	}
}

func TestBulkAddFailsFastOnPermissionDenial(t *testing.T) {
	repo := newFakeRepo()
	denySecond := func(ctx context.Context, kind, op string, scope store.Scope) error {
		if scope.ID == "denied" {
			return fmt.Errorf("denied: %s.%s", kind, op)
		}
		return nil
	}
	f := NewFactory[notePayload]("note", repo, WithPermissionChecker[notePayload](denySecond))

	raw := json.RawMessage(`{"items":[
		{"scope":{"scopeType":"project","scopeId":"allowed"},"payload":{"title":"ok"}},
		{"scope":{"scopeType":"project","scopeId":"denied"},"payload":{"title":"also ok"}}
	]}`)
	if _, err := f.BulkAdd(context.Background(), raw); err == nil {
		t.Fatalf("expected BulkAdd to fail fast when any item is denied")
	}
	if len(repo.entries) != 0 {
		t.Fatalf("expected no items to be created when one is denied, got %d", len(repo.entries))
	}
}

func TestBulkAddUsesBatchPermissionCheckerWhenConfigured(t *testing.T) {
	repo := newFakeRepo()
	var scopesSeen []store.Scope
	batchDeny := func(ctx context.Context, kind, op string, scopes []store.Scope) error {
		scopesSeen = scopes
		return fmt.Errorf("denied: %s.%s", kind, op)
	}
	f := NewFactory[notePayload]("note", repo, WithBatchPermissionChecker[notePayload](batchDeny))

	raw := json.RawMessage(`{"items":[
		{"scope":{"scopeType":"project","scopeId":"p1"},"payload":{"title":"a"}},
		{"scope":{"scopeType":"project","scopeId":"p2"},"payload":{"title":"b"}}
	]}`)
	if _, err := f.BulkAdd(context.Background(), raw); err == nil {
		t.Fatalf("expected BulkAdd to fail when the batch checker denies")
	}
	if len(scopesSeen) != 2 {
		t.Fatalf("expected the batch checker to see all %d scopes in one call, got %d", 2, len(scopesSeen))
	}
	if len(repo.entries) != 0 {
		t.Fatalf("expected no items to be created, got %d", len(repo.entries))
	}
}

func TestBulkDeleteRemovesEveryListedEntry(t *testing.T) {
	repo := newFakeRepo()
	f := NewFactory[notePayload]("note", repo)
	env1, _ := repo.Create(context.Background(), store.Scope{Type: store.ScopeGlobal}, notePayload{Title: "a"}, "agent-1")
	env2, _ := repo.Create(context.Background(), store.Scope{Type: store.ScopeGlobal}, notePayload{Title: "b"}, "agent-1")

	raw := json.RawMessage(fmt.Sprintf(`{"entryIds":[%q,%q,"missing"]}`, env1.ID, env2.ID))
	result, err := f.BulkDelete(context.Background(), raw)
	if err != nil {
		t.Fatalf("BulkDelete() error = %v", err)
	}
	bulk := result.(*BulkResult)
	if bulk.Succeeded != 2 || bulk.Failed != 1 {
		t.Fatalf("bulk = %+v, want 2 succeeded and 1 failed", bulk)
	}
	if len(repo.entries) != 0 {
		t.Fatalf("expected both real entries to be deleted, got %d remaining", len(repo.entries))
	}
}

func TestListReportsHasMoreAndIssuesResumableCursor(t *testing.T) {
	repo := newFakeRepo()
	for i := 0; i < 3; i++ {
		repo.Create(context.Background(), store.Scope{Type: store.ScopeGlobal}, notePayload{Title: fmt.Sprintf("n%d", i)}, "agent-1")
	}
	f := NewFactory[notePayload]("note", repo, WithCursorCodec[notePayload](fakeCursorCodec{}))

	raw := json.RawMessage(`{"scope":{"scopeType":"global"},"limit":2}`)
	result, err := f.List(context.Background(), raw)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	page, ok := result.(ListResult[notePayload])
	if !ok {
		t.Fatalf("result type = %T, want ListResult[notePayload]", result)
	}
	if page.Meta.ReturnedCount != 2 {
		t.Fatalf("ReturnedCount = %d, want 2", page.Meta.ReturnedCount)
	}
	if !page.Meta.HasMore {
		t.Fatalf("expected HasMore = true with a third entry still unread")
	}
	if page.Meta.NextCursor == "" {
		t.Fatalf("expected a NextCursor to be issued")
	}

	raw2 := json.RawMessage(fmt.Sprintf(`{"scope":{"scopeType":"global"},"limit":2,"cursor":%q}`, page.Meta.NextCursor))
	result2, err := f.List(context.Background(), raw2)
	if err != nil {
		t.Fatalf("List() resume error = %v", err)
	}
	page2 := result2.(ListResult[notePayload])
	if page2.Meta.ReturnedCount != 1 {
		t.Fatalf("ReturnedCount = %d, want 1 on the final page", page2.Meta.ReturnedCount)
	}
	if page2.Meta.HasMore {
		t.Fatalf("expected HasMore = false on the final page")
	}
	if page2.Meta.NextCursor != "" {
		t.Fatalf("expected no NextCursor on the final page")
	}
}
