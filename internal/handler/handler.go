// Package handler builds the CRUD dispatcher every artifact kind (guideline,
// tool, knowledge, experience) exposes, parameterized over its payload type
// so the add/update/get/list/history/deactivate/delete/bulk_* wiring is
// written once instead of once per kind.
package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"memoryd/internal/store"
	"memoryd/internal/validate"
)

// Repo is the subset of envelopeStore's generated API a Factory needs. Every
// kind repository (*store.GuidelineRepo, *store.ToolRepo, ...) satisfies it
// because each embeds *store.envelopeStore[P].
type Repo[P any] interface {
	Create(ctx context.Context, scope store.Scope, payload P, createdBy string) (*store.Envelope[P], error)
	Update(ctx context.Context, entryID string, payload P, updatedBy string) (*store.Envelope[P], error)
	GetByID(ctx context.Context, entryID string) (*store.Envelope[P], error)
	GetHistory(ctx context.Context, entryID string) ([]int, error)
	SetActive(ctx context.Context, entryID string, active bool) error
	Delete(ctx context.Context, entryID string) error
	List(ctx context.Context, scope store.Scope, limit, offset int) ([]*store.Envelope[P], error)
	RecordAccess(entryID string)
}

// Handler is a transport-agnostic operation: decode raw params, do the
// work, return a JSON-marshalable result.
type Handler func(ctx context.Context, raw json.RawMessage) (interface{}, error)

// ScopeParam is the wire shape of a store.Scope.
type ScopeParam struct {
	Type string `json:"scopeType"`
	ID   string `json:"scopeId,omitempty"`
}

func (s ScopeParam) toScope() store.Scope {
	return store.Scope{Type: store.ScopeType(s.Type), ID: s.ID}
}

// PermissionChecker authorizes an operation against a scope before the
// Factory touches the repo; nil means no check is performed.
type PermissionChecker func(ctx context.Context, kind, op string, scope store.Scope) error

// BatchPermissionChecker authorizes every resource a bulk_* operation would
// touch in a single call, before any of them execute. A non-nil error
// aborts the entire batch: bulk operations fail fast, so one denied item
// must stop the whole call rather than being skipped in isolation.
type BatchPermissionChecker func(ctx context.Context, kind, op string, scopes []store.Scope) error

// Validator runs field-level checks against a decoded payload; a non-empty
// validate.Errors aborts the operation before it reaches the repo.
type Validator[P any] func(payload P) validate.Errors

// Factory wires Repo[P] into the fixed set of dispatcher operations named in
// the SYSTEM OVERVIEW: add, update, get, list, history, deactivate, delete,
// bulk_add, bulk_update, bulk_delete.
type Factory[P any] struct {
	kind           string
	repo           Repo[P]
	validate       Validator[P]
	authorize      PermissionChecker
	authorizeBatch BatchPermissionChecker
	cursor         CursorCodec
	defaultBy      string
	maxList        int
}

// Option configures a Factory at construction time.
type Option[P any] func(*Factory[P])

// WithValidator attaches field validation run before every add/update.
func WithValidator[P any](v Validator[P]) Option[P] {
	return func(f *Factory[P]) { f.validate = v }
}

// WithPermissionChecker attaches an authorization hook run before every
// operation.
func WithPermissionChecker[P any](p PermissionChecker) Option[P] {
	return func(f *Factory[P]) { f.authorize = p }
}

// WithBatchPermissionChecker attaches the batched authorization hook
// bulk_add/bulk_update/bulk_delete use to fail fast. Without one, bulk
// operations fall back to running the single-item PermissionChecker against
// every resource before any write executes, preserving the same fail-fast
// guarantee at the cost of one round trip per item instead of one per call.
func WithBatchPermissionChecker[P any](p BatchPermissionChecker) Option[P] {
	return func(f *Factory[P]) { f.authorizeBatch = p }
}

// WithCursorCodec attaches the pagination cursor codec List uses to resume
// a listing from a client-supplied cursor and to mint the next one.
// Without one, List pages purely by offset and never issues a cursor.
func WithCursorCodec[P any](c CursorCodec) Option[P] {
	return func(f *Factory[P]) { f.cursor = c }
}

// WithDefaultCreatedBy sets the createdBy/updatedBy fallback used when a
// request omits it (e.g. system-initiated writes).
func WithDefaultCreatedBy[P any](by string) Option[P] {
	return func(f *Factory[P]) { f.defaultBy = by }
}

// WithMaxListLimit caps the page size list/bulk operations will honor.
func WithMaxListLimit[P any](n int) Option[P] {
	return func(f *Factory[P]) { f.maxList = n }
}

// NewFactory builds a Factory for kind (e.g. "guideline") backed by repo.
func NewFactory[P any](kind string, repo Repo[P], opts ...Option[P]) *Factory[P] {
	f := &Factory[P]{kind: kind, repo: repo, maxList: 100}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Handlers returns the full operation-name -> Handler map for this kind.
func (f *Factory[P]) Handlers() map[string]Handler {
	return map[string]Handler{
		"add":           f.Add,
		"update":        f.Update,
		"get":           f.Get,
		"list":          f.List,
		"history":       f.History,
		"deactivate":    f.Deactivate,
		"delete":        f.Delete,
		"bulk_add":      f.BulkAdd,
		"bulk_update":   f.BulkUpdate,
		"bulk_delete":   f.BulkDelete,
	}
}

func (f *Factory[P]) authorizeOp(ctx context.Context, op string, scope store.Scope) error {
	if f.authorize == nil {
		return nil
	}
	return f.authorize(ctx, f.kind, op, scope)
}

// authorizeBulk checks every scope a bulk_* call would touch before any item
// executes, so a denial aborts the whole batch instead of just the item it
// names. It prefers the dedicated BatchPermissionChecker (one round trip for
// the whole batch) and falls back to running the single-item checker against
// every scope up front when no batch checker is configured.
func (f *Factory[P]) authorizeBulk(ctx context.Context, op string, scopes []store.Scope) error {
	if f.authorizeBatch != nil {
		return f.authorizeBatch(ctx, f.kind, op, scopes)
	}
	if f.authorize == nil {
		return nil
	}
	for _, scope := range scopes {
		if err := f.authorize(ctx, f.kind, op, scope); err != nil {
			return err
		}
	}
	return nil
}

func (f *Factory[P]) createdByOrDefault(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return f.defaultBy
}

type addParams[P any] struct {
	Scope     ScopeParam `json:"scope"`
	Payload   P          `json:"payload"`
	CreatedBy string     `json:"createdBy,omitempty"`
}

// Add decodes an addParams[P], validates the payload, and creates a new
// envelope.
func (f *Factory[P]) Add(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params addParams[P]
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("handler: decode add params: %w", err)
	}
	scope := params.Scope.toScope()
	if err := f.authorizeOp(ctx, "add", scope); err != nil {
		return nil, err
	}
	if f.validate != nil {
		if errs := f.validate(params.Payload); len(errs) > 0 {
			return nil, errs
		}
	}
	return f.repo.Create(ctx, scope, params.Payload, f.createdByOrDefault(params.CreatedBy))
}

type updateParams[P any] struct {
	EntryID   string `json:"entryId"`
	Payload   P      `json:"payload"`
	UpdatedBy string `json:"updatedBy,omitempty"`
}

// Update decodes an updateParams[P], validates, and appends a new version.
func (f *Factory[P]) Update(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params updateParams[P]
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("handler: decode update params: %w", err)
	}
	if params.EntryID == "" {
		return nil, fmt.Errorf("handler: entryId is required")
	}
	if err := f.authorizeOp(ctx, "update", store.Scope{}); err != nil {
		return nil, err
	}
	if f.validate != nil {
		if errs := f.validate(params.Payload); len(errs) > 0 {
			return nil, errs
		}
	}
	return f.repo.Update(ctx, params.EntryID, params.Payload, f.createdByOrDefault(params.UpdatedBy))
}

type entryIDParams struct {
	EntryID string `json:"entryId"`
}

// Get fetches the current version of an entry and records the access.
func (f *Factory[P]) Get(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params entryIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("handler: decode get params: %w", err)
	}
	if params.EntryID == "" {
		return nil, fmt.Errorf("handler: entryId is required")
	}
	env, err := f.repo.GetByID(ctx, params.EntryID)
	if err != nil {
		return nil, err
	}
	f.repo.RecordAccess(params.EntryID)
	return env, nil
}

type listParams struct {
	Scope  ScopeParam `json:"scope"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
	Cursor string     `json:"cursor,omitempty"`
}

// CursorCodec mints and resolves the opaque pagination token List hands
// back to a client, backed in production by internal/cursor.Issuer.
// ResolveOffset decodes a client-supplied cursor back into the offset to
// resume from, scoped to kind/scope so a cursor from one listing can't be
// replayed against another; Issue mints a fresh cursor for the page that
// was just returned.
type CursorCodec interface {
	ResolveOffset(ctx context.Context, kind string, scope store.Scope, token string) (int, error)
	Issue(ctx context.Context, kind string, scope store.Scope, offset int) (string, error)
}

// ListMeta accompanies a List response with the pagination bookkeeping a
// client needs to know whether to keep paging.
type ListMeta struct {
	ReturnedCount int    `json:"returnedCount"`
	HasMore       bool   `json:"hasMore"`
	NextCursor    string `json:"nextCursor,omitempty"`
}

// ListResult is List's full wire response: the page plus its pagination
// metadata.
type ListResult[P any] struct {
	Items []*store.Envelope[P] `json:"items"`
	Meta  ListMeta             `json:"meta"`
}

// List returns a page of active entries visible to scope, resuming from a
// cursor when one is supplied and reporting whether another page follows.
func (f *Factory[P]) List(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params listParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("handler: decode list params: %w", err)
	}
	scope := params.Scope.toScope()
	if err := f.authorizeOp(ctx, "list", scope); err != nil {
		return nil, err
	}
	limit := params.Limit
	if limit <= 0 || limit > f.maxList {
		limit = f.maxList
	}

	offset := params.Offset
	if params.Cursor != "" {
		if f.cursor == nil {
			return nil, fmt.Errorf("handler: cursor supplied but no cursor codec is configured")
		}
		resolved, err := f.cursor.ResolveOffset(ctx, f.kind, scope, params.Cursor)
		if err != nil {
			return nil, fmt.Errorf("handler: resolve cursor: %w", err)
		}
		offset = resolved
	}

	// Fetch one row past the page to detect whether another page follows
	// without a separate COUNT query.
	items, err := f.repo.List(ctx, scope, limit+1, offset)
	if err != nil {
		return nil, err
	}
	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	meta := ListMeta{ReturnedCount: len(items), HasMore: hasMore}
	if hasMore && f.cursor != nil {
		if token, err := f.cursor.Issue(ctx, f.kind, scope, offset+limit); err == nil {
			meta.NextCursor = token
		}
	}
	return ListResult[P]{Items: items, Meta: meta}, nil
}

// History returns the ordered version numbers for an entry.
func (f *Factory[P]) History(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params entryIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("handler: decode history params: %w", err)
	}
	if params.EntryID == "" {
		return nil, fmt.Errorf("handler: entryId is required")
	}
	return f.repo.GetHistory(ctx, params.EntryID)
}

type deactivateParams struct {
	EntryID string `json:"entryId"`
	Active  *bool  `json:"active,omitempty"`
}

// Deactivate flips is_active; Active defaults to false (deactivate) but a
// caller can pass true to reactivate an entry through the same operation.
func (f *Factory[P]) Deactivate(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params deactivateParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("handler: decode deactivate params: %w", err)
	}
	if params.EntryID == "" {
		return nil, fmt.Errorf("handler: entryId is required")
	}
	active := false
	if params.Active != nil {
		active = *params.Active
	}
	if err := f.repo.SetActive(ctx, params.EntryID, active); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

// Delete hard-deletes an entry and its full version chain.
func (f *Factory[P]) Delete(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params entryIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("handler: decode delete params: %w", err)
	}
	if params.EntryID == "" {
		return nil, fmt.Errorf("handler: entryId is required")
	}
	if err := f.authorizeOp(ctx, "delete", store.Scope{}); err != nil {
		return nil, err
	}
	if err := f.repo.Delete(ctx, params.EntryID); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}
