package main

import (
	"context"
	"encoding/json"
	"fmt"

	"memoryd/internal/handler"
	"memoryd/internal/librarian"
)

type librarianActionParams struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// findPending looks a recommendation up by ID across every status, since
// RecommendationStore only lists by status rather than by ID.
func findRecommendation(ctx context.Context, store librarian.RecommendationStore, id string) (librarian.Recommendation, error) {
	for _, status := range []librarian.RecommendationStatus{
		librarian.StatusPending, librarian.StatusApproved, librarian.StatusRejected, librarian.StatusSkipped,
	} {
		recs, err := store.ListByStatus(ctx, status)
		if err != nil {
			return librarian.Recommendation{}, err
		}
		for _, r := range recs {
			if r.ID == id {
				return r, nil
			}
		}
	}
	return librarian.Recommendation{}, fmt.Errorf("librarian: recommendation %q not found", id)
}

// librarianHandlers builds the memory_librarian tool's actions: triggering
// an out-of-band run, listing recommendations by status, and resolving a
// pending recommendation.
func librarianHandlers(runner *librarian.Runner, store librarian.RecommendationStore, materializer librarian.Materializer) map[string]handler.Handler {
	return map[string]handler.Handler{
		"run": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			if err := runner.Run(ctx); err != nil {
				return nil, err
			}
			return map[string]string{"state": string(runner.State())}, nil
		},
		"list": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p librarianActionParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("memoryd: decode librarian list params: %w", err)
			}
			status := librarian.RecommendationStatus(p.Status)
			if status == "" {
				status = librarian.StatusPending
			}
			return store.ListByStatus(ctx, status)
		},
		"approve": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p librarianActionParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("memoryd: decode librarian approve params: %w", err)
			}
			rec, err := findRecommendation(ctx, store, p.ID)
			if err != nil {
				return nil, err
			}
			if err := librarian.Approve(ctx, store, materializer, rec); err != nil {
				return nil, err
			}
			return map[string]string{"status": "approved"}, nil
		},
		"reject": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p librarianActionParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("memoryd: decode librarian reject params: %w", err)
			}
			rec, err := findRecommendation(ctx, store, p.ID)
			if err != nil {
				return nil, err
			}
			if err := librarian.Reject(ctx, store, rec); err != nil {
				return nil, err
			}
			return map[string]string{"status": "rejected"}, nil
		},
		"skip": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p librarianActionParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("memoryd: decode librarian skip params: %w", err)
			}
			rec, err := findRecommendation(ctx, store, p.ID)
			if err != nil {
				return nil, err
			}
			if err := librarian.Skip(ctx, store, rec); err != nil {
				return nil, err
			}
			return map[string]string{"status": "skipped"}, nil
		},
	}
}

const librarianSchema = `{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ["run", "list", "approve", "reject", "skip"]},
    "agentId": {"type": "string"},
    "params": {
      "type": "object",
      "properties": {
        "status": {"type": "string", "enum": ["pending", "approved", "rejected", "skipped"]},
        "id": {"type": "string"}
      }
    }
  },
  "required": ["action"]
}`
