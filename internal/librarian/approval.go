package librarian

import (
	"context"
	"fmt"
)

// Materializer applies an approved recommendation's effect to the artifact
// repositories: promoting an entry's scope, merging consolidated entries
// into one, or deactivating a deprecated entry.
type Materializer interface {
	Promote(ctx context.Context, entryType string, entryIDs []string) error
	Consolidate(ctx context.Context, entryType string, entryIDs []string) error
	Deprecate(ctx context.Context, entryType string, entryIDs []string) error
}

// Approve transitions a pending recommendation to approved and, if
// materializer is non-nil, applies its effect through the repositories.
// Rejecting or skipping never touches the repositories.
func Approve(ctx context.Context, store RecommendationStore, materializer Materializer, rec Recommendation) error {
	if rec.Status != StatusPending {
		return fmt.Errorf("librarian: recommendation %s is not pending (status=%s)", rec.ID, rec.Status)
	}

	if materializer != nil {
		var err error
		switch rec.Kind {
		case KindPromotion:
			err = materializer.Promote(ctx, rec.EntryType, rec.EntryIDs)
		case KindConsolidation:
			err = materializer.Consolidate(ctx, rec.EntryType, rec.EntryIDs)
		case KindDeprecation:
			err = materializer.Deprecate(ctx, rec.EntryType, rec.EntryIDs)
		default:
			err = fmt.Errorf("librarian: unknown recommendation kind %q", rec.Kind)
		}
		if err != nil {
			return fmt.Errorf("librarian: materialize %s: %w", rec.Kind, err)
		}
	}

	return store.UpdateStatus(ctx, rec.ID, StatusApproved)
}

// Reject marks a pending recommendation rejected without touching the
// repositories.
func Reject(ctx context.Context, store RecommendationStore, rec Recommendation) error {
	if rec.Status != StatusPending {
		return fmt.Errorf("librarian: recommendation %s is not pending (status=%s)", rec.ID, rec.Status)
	}
	return store.UpdateStatus(ctx, rec.ID, StatusRejected)
}

// Skip marks a pending recommendation skipped, for operators deferring a
// decision without rejecting it outright.
func Skip(ctx context.Context, store RecommendationStore, rec Recommendation) error {
	if rec.Status != StatusPending {
		return fmt.Errorf("librarian: recommendation %s is not pending (status=%s)", rec.ID, rec.Status)
	}
	return store.UpdateStatus(ctx, rec.ID, StatusSkipped)
}
