package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"memoryd/internal/store"
)

// BulkItemResult reports the outcome of one item within a bulk_* operation.
// Authorization is checked for the whole batch up front and fails the
// entire call if any item is denied; once past that gate, an individual
// item's validation or repository error only fails that item.
type BulkItemResult struct {
	Index  int         `json:"index"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// BulkResult is the aggregate response of a bulk_* operation.
type BulkResult struct {
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Items     []BulkItemResult `json:"items"`
}

func (r *BulkResult) record(index int, result interface{}, err error) {
	item := BulkItemResult{Index: index}
	if err != nil {
		item.Error = err.Error()
		r.Failed++
	} else {
		item.Result = result
		r.Succeeded++
	}
	r.Items = append(r.Items, item)
}

type bulkAddParams[P any] struct {
	Items []addParams[P] `json:"items"`
}

// BulkAdd creates every item, failing the whole call before any item
// executes if authorization denies any one of them.
func (f *Factory[P]) BulkAdd(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params bulkAddParams[P]
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("handler: decode bulk_add params: %w", err)
	}
	scopes := make([]store.Scope, len(params.Items))
	for i, item := range params.Items {
		scopes[i] = item.Scope.toScope()
	}
	if err := f.authorizeBulk(ctx, "add", scopes); err != nil {
		return nil, fmt.Errorf("handler: bulk_add denied, no items executed: %w", err)
	}

	result := &BulkResult{}
	for i, item := range params.Items {
		if f.validate != nil {
			if errs := f.validate(item.Payload); len(errs) > 0 {
				result.record(i, nil, errs)
				continue
			}
		}
		env, err := f.repo.Create(ctx, scopes[i], item.Payload, f.createdByOrDefault(item.CreatedBy))
		result.record(i, env, err)
	}
	return result, nil
}

type bulkUpdateParams[P any] struct {
	Items []updateParams[P] `json:"items"`
}

// BulkUpdate updates every item, failing the whole call before any item
// executes if authorization denies any one of them.
func (f *Factory[P]) BulkUpdate(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params bulkUpdateParams[P]
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("handler: decode bulk_update params: %w", err)
	}
	scopes := make([]store.Scope, len(params.Items))
	if err := f.authorizeBulk(ctx, "update", scopes); err != nil {
		return nil, fmt.Errorf("handler: bulk_update denied, no items executed: %w", err)
	}

	result := &BulkResult{}
	for i, item := range params.Items {
		if item.EntryID == "" {
			result.record(i, nil, fmt.Errorf("handler: entryId is required"))
			continue
		}
		if f.validate != nil {
			if errs := f.validate(item.Payload); len(errs) > 0 {
				result.record(i, nil, errs)
				continue
			}
		}
		env, err := f.repo.Update(ctx, item.EntryID, item.Payload, f.createdByOrDefault(item.UpdatedBy))
		result.record(i, env, err)
	}
	return result, nil
}

type bulkDeleteParams struct {
	EntryIDs []string `json:"entryIds"`
}

// BulkDelete deletes every listed entry, failing the whole call before any
// item executes if authorization denies any one of them.
func (f *Factory[P]) BulkDelete(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params bulkDeleteParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("handler: decode bulk_delete params: %w", err)
	}
	scopes := make([]store.Scope, len(params.EntryIDs))
	if err := f.authorizeBulk(ctx, "delete", scopes); err != nil {
		return nil, fmt.Errorf("handler: bulk_delete denied, no items executed: %w", err)
	}

	result := &BulkResult{}
	for i, id := range params.EntryIDs {
		if id == "" {
			result.record(i, nil, fmt.Errorf("handler: entryId is required"))
			continue
		}
		err := f.repo.Delete(ctx, id)
		result.record(i, map[string]bool{"ok": err == nil}, err)
	}
	return result, nil
}
