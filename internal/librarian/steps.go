package librarian

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Clusterer groups near-duplicate entries of a kind into Clusters, backed
// in production by internal/store's FTS5 duplicate search run pairwise
// across every active entry of each kind.
type Clusterer interface {
	Cluster(ctx context.Context, entryType string) ([]Cluster, error)
}

var clusterableKinds = []string{"guideline", "tool", "knowledge", "experience"}

type clusterStep struct {
	clusterer Clusterer
	minSize   int
}

func (s *clusterStep) Name() string { return "cluster" }

// Execute clusters every kind concurrently via errgroup, since the four
// kinds are independent FTS5 queries against the same adapter; each kind's
// result lands in its own slot so the merged output stays in
// clusterableKinds order regardless of which goroutine finishes first.
func (s *clusterStep) Execute(ctx context.Context, run *RunContext) error {
	minSize := s.minSize
	if minSize <= 0 {
		minSize = 3
	}

	perKind := make([][]Cluster, len(clusterableKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range clusterableKinds {
		i, kind := i, kind
		g.Go(func() error {
			clusters, err := s.clusterer.Cluster(gctx, kind)
			if err != nil {
				return fmt.Errorf("cluster %s: %w", kind, err)
			}
			perKind[i] = clusters
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, clusters := range perKind {
		for _, c := range clusters {
			if len(c.EntryIDs) >= minSize {
				run.Clusters = append(run.Clusters, c)
			}
		}
	}
	return nil
}

type scoreStep struct{}

func (s *scoreStep) Name() string { return "score" }

// Execute is a no-op placeholder for a future confidence-refinement pass;
// Cluster already attaches an AvgScore, and recommendStep consumes it
// directly. Kept as its own step so a future scorer (e.g. feedback-weighted
// re-ranking) can be inserted without reshaping the pipeline.
func (s *scoreStep) Execute(ctx context.Context, run *RunContext) error {
	return nil
}

type recommendStep struct {
	promotionConfidence float64
}

func (s *recommendStep) Name() string { return "recommend" }

func (s *recommendStep) Execute(ctx context.Context, run *RunContext) error {
	threshold := s.promotionConfidence
	if threshold <= 0 {
		threshold = 0.7
	}

	for _, c := range run.Clusters {
		switch {
		case c.AvgScore >= threshold && len(c.EntryIDs) >= 3:
			run.Recommendations = append(run.Recommendations, Recommendation{
				Kind:       KindConsolidation,
				EntryType:  c.EntryType,
				EntryIDs:   c.EntryIDs,
				Rationale:  fmt.Sprintf("%d near-duplicate %s entries with average similarity %.2f", len(c.EntryIDs), c.EntryType, c.AvgScore),
				Confidence: c.AvgScore,
			})
		case c.AvgScore >= threshold:
			run.Recommendations = append(run.Recommendations, Recommendation{
				Kind:       KindPromotion,
				EntryType:  c.EntryType,
				EntryIDs:   c.EntryIDs,
				Rationale:  fmt.Sprintf("recurring %s pattern across %d entries, candidate for promotion to a broader scope", c.EntryType, len(c.EntryIDs)),
				Confidence: c.AvgScore,
			})
		}
	}
	return nil
}
