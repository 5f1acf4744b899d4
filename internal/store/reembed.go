package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"memoryd/internal/embedding"
	"memoryd/internal/logging"
)

// ReembedState is the lifecycle of a single re-embed run.
type ReembedState string

const (
	ReembedIdle      ReembedState = "idle"
	ReembedRunning   ReembedState = "running"
	ReembedCompleted ReembedState = "completed"
	ReembedFailed    ReembedState = "failed"
)

// ReembedResult summarizes a completed run.
type ReembedResult struct {
	Processed int
	Failed    int
	Queued    int
	State     ReembedState
}

// TextForFunc resolves the text to re-embed for a given artifact reference,
// supplied by the caller since internal/store does not know each kind's
// payload shape for rendering text.
type TextForFunc func(ctx context.Context, entryType, entryID string) (string, error)

// ReembedService walks the vectors table in batches and re-embeds rows
// whose dimension no longer matches the active provider, exactly the
// "switching providers" scenario a force re-embed
// handles, generalized to any artifact kind.
type ReembedService struct {
	adapter   *Adapter
	engine    embedding.Engine
	textFor   TextForFunc
	batchSize int
	batchDelay time.Duration

	running int32
}

// NewReembedService wires a ReembedService.
func NewReembedService(adapter *Adapter, engine embedding.Engine, textFor TextForFunc, batchSize int, batchDelay time.Duration) *ReembedService {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &ReembedService{adapter: adapter, engine: engine, textFor: textFor, batchSize: batchSize, batchDelay: batchDelay}
}

// TriggerIfNeeded compares the active provider's dimension against the most
// recently stored embedding's dimension and, on mismatch, re-embeds every
// stored vector. Concurrent triggers are refused via an atomic
// compare-and-swap rather than queued.
func (s *ReembedService) TriggerIfNeeded(ctx context.Context) (ReembedResult, error) {
	currentDim, err := s.adapter.VectorDimension(ctx)
	if err != nil {
		return ReembedResult{State: ReembedFailed}, fmt.Errorf("store: read current vector dimension: %w", err)
	}
	if currentDim == 0 || currentDim == s.engine.Dimensions() {
		return ReembedResult{State: ReembedIdle}, nil
	}
	return s.Force(ctx)
}

// Force re-embeds every stored vector regardless of whether dimensions
// currently match, used when an operator explicitly switches providers.
func (s *ReembedService) Force(ctx context.Context) (ReembedResult, error) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ReembedResult{State: ReembedRunning}, fmt.Errorf("store: re-embed already running")
	}
	defer atomic.StoreInt32(&s.running, 0)

	log := logging.Get(logging.CategoryEmbedding)
	result := ReembedResult{State: ReembedRunning}

	total, err := s.adapter.CountVectors(ctx)
	if err != nil {
		return ReembedResult{State: ReembedFailed}, err
	}
	log.Info("re-embed starting, %d vectors queued", total)
	result.Queued = total

	offset := 0
	for {
		batch, err := s.adapter.ListVectors(ctx, offset, s.batchSize)
		if err != nil {
			return result, fmt.Errorf("store: list vectors batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, row := range batch {
			text, err := s.textFor(ctx, row.EntryType, row.EntryID)
			if err != nil {
				log.Warn("re-embed: could not render text for %s/%s: %v", row.EntryType, row.EntryID, err)
				result.Failed++
				continue
			}
			vec, err := embedding.EmbedForTask(ctx, s.engine, text, embedding.TaskRetrievalDocument)
			if err != nil {
				log.Warn("re-embed: embed failed for %s/%s: %v", row.EntryType, row.EntryID, err)
				result.Failed++
				continue
			}
			if err := s.adapter.UpsertVector(ctx, row.EntryType, row.EntryID, row.VersionID, s.engine.Name(), vec); err != nil {
				log.Warn("re-embed: store failed for %s/%s: %v", row.EntryType, row.EntryID, err)
				result.Failed++
				continue
			}
			result.Processed++
		}

		offset += len(batch)
		if s.batchDelay > 0 {
			select {
			case <-ctx.Done():
				result.State = ReembedFailed
				return result, ctx.Err()
			case <-time.After(s.batchDelay):
			}
		}
	}

	result.State = ReembedCompleted
	log.Info("re-embed complete: processed=%d failed=%d", result.Processed, result.Failed)
	return result, nil
}
