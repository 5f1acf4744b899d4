// Package librarian runs batch pattern-detection jobs over the artifact
// store, clustering near-duplicate entries and producing promotion,
// consolidation, and deprecation recommendations for an operator (or an
// agent) to approve.
package librarian

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"memoryd/internal/logging"
)

// RunState is a librarian job's lifecycle state.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// RecommendationKind is the action a recommendation proposes.
type RecommendationKind string

const (
	KindPromotion     RecommendationKind = "promotion"
	KindConsolidation RecommendationKind = "consolidation"
	KindDeprecation   RecommendationKind = "deprecation"
)

// RecommendationStatus is a recommendation's approval lifecycle.
type RecommendationStatus string

const (
	StatusPending  RecommendationStatus = "pending"
	StatusApproved RecommendationStatus = "approved"
	StatusRejected RecommendationStatus = "rejected"
	StatusSkipped  RecommendationStatus = "skipped"
)

// Recommendation is one proposed change surfaced by a librarian run.
type Recommendation struct {
	ID         string
	Kind       RecommendationKind
	EntryType  string
	EntryIDs   []string
	Rationale  string
	Confidence float64
	Status     RecommendationStatus
	CreatedAt  time.Time
}

// Step is one ordered unit of work within a librarian run. A run's steps
// are fixed (cluster -> score -> recommend) but kept as an interface so
// individual steps are independently testable.
type Step interface {
	Name() string
	Execute(ctx context.Context, run *RunContext) error
}

// RunContext carries state threaded through a run's steps.
type RunContext struct {
	Clusters        []Cluster
	Recommendations []Recommendation
}

// Cluster is a group of near-duplicate/related entries of the same kind.
type Cluster struct {
	EntryType string
	EntryIDs  []string
	AvgScore  float64
}

// RecommendationStore persists recommendations produced by a run.
type RecommendationStore interface {
	SaveRecommendations(ctx context.Context, recs []Recommendation) error
	UpdateStatus(ctx context.Context, id string, status RecommendationStatus) error
	ListByStatus(ctx context.Context, status RecommendationStatus) ([]Recommendation, error)
}

// Config tunes a Runner, mirroring config.LibrarianConfig.
type Config struct {
	MinClusterSize      int
	PromotionConfidence float64
	JobTimeout          time.Duration
}

// Runner executes one multi-step librarian job at a time; a plain
// scheduler.Job only expresses "run this on an interval" and can't report
// the ordered-steps-with-progress shape a librarian run needs, so Runner is
// a dedicated type built in the same interface+struct idiom as
// internal/scheduler.Job.
type Runner struct {
	cfg   Config
	steps []Step
	store RecommendationStore

	mu      sync.Mutex
	state   RunState
	current string // name of the step currently executing, empty when idle
	lastErr error
}

// NewRunner constructs a Runner with the standard cluster->score->recommend
// pipeline.
func NewRunner(cfg Config, store RecommendationStore, clusterer Clusterer) *Runner {
	return &Runner{
		cfg:   cfg,
		store: store,
		state: RunPending,
		steps: []Step{
			&clusterStep{clusterer: clusterer, minSize: cfg.MinClusterSize},
			&scoreStep{},
			&recommendStep{promotionConfidence: cfg.PromotionConfidence},
		},
	}
}

// State reports the runner's current lifecycle state.
func (r *Runner) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Progress reports the name of the currently executing step, or "" when
// idle.
func (r *Runner) Progress() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Run executes the pipeline once, persisting any recommendations it
// produces. Only one run may be in flight at a time; a concurrent call
// returns an error rather than interleaving with an in-progress run.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.state == RunRunning {
		r.mu.Unlock()
		return fmt.Errorf("librarian: a run is already in progress")
	}
	r.state = RunRunning
	r.mu.Unlock()

	log := logging.Get(logging.CategoryLibrarian)

	if r.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.JobTimeout)
		defer cancel()
	}

	run := &RunContext{}
	var stepErr error
	for _, step := range r.steps {
		r.mu.Lock()
		r.current = step.Name()
		r.mu.Unlock()

		log.Debug("librarian step %s starting", step.Name())
		if err := step.Execute(ctx, run); err != nil {
			stepErr = fmt.Errorf("librarian: step %s: %w", step.Name(), err)
			break
		}
	}

	r.mu.Lock()
	r.current = ""
	if stepErr != nil {
		r.state = RunFailed
		r.lastErr = stepErr
	} else {
		r.state = RunCompleted
		r.lastErr = nil
	}
	r.mu.Unlock()

	if stepErr != nil {
		log.Error("librarian run failed: %v", stepErr)
		return stepErr
	}

	for i := range run.Recommendations {
		run.Recommendations[i].ID = uuid.NewString()
		run.Recommendations[i].CreatedAt = time.Now()
		run.Recommendations[i].Status = StatusPending
	}
	if r.store != nil && len(run.Recommendations) > 0 {
		if err := r.store.SaveRecommendations(ctx, run.Recommendations); err != nil {
			log.Error("failed to persist librarian recommendations: %v", err)
			return err
		}
	}

	log.Info("librarian run completed: %d clusters, %d recommendations", len(run.Clusters), len(run.Recommendations))
	return nil
}

// Name satisfies scheduler.Job so a Runner can be driven by the periodic
// scheduler in addition to the hook-learner's activity-count trigger.
func (r *Runner) Name() string { return "librarian" }
