package learn

import (
	"context"
	"time"

	"memoryd/internal/store"
)

// TrendReport summarizes raw interaction traces over a window, independent
// of which traces also produced an Experience artifact: the analytics
// surface session tooling polls to answer "is this agent doing OK" without
// reading every trace itself.
type TrendReport struct {
	Since            time.Time
	TotalTraces      int
	SuccessRate      float64 // fraction of traces with QualityScore >= successThreshold
	ToolFailureCounts map[string]int
	LowQualityCount  int
	DistinctTools    int
}

// TraceSource is the subset of ExperienceRepo trend analysis needs, backed
// in production by *store.ExperienceRepo.
type TraceSource interface {
	ListTraces(ctx context.Context, agentID string, since time.Time, limit int) ([]store.InteractionTrace, error)
}

const successThreshold = 0.5

// ComputeTrends reads every trace for agentID (or every agent if empty)
// since the given time and aggregates outcome counts, tool-failure
// frequency, and a low-quality tally a librarian run or operator can act
// on without re-deriving it from raw traces each time.
func ComputeTrends(ctx context.Context, traces TraceSource, agentID string, since time.Time, limit int) (TrendReport, error) {
	rows, err := traces.ListTraces(ctx, agentID, since, limit)
	if err != nil {
		return TrendReport{}, err
	}

	report := TrendReport{
		Since:             since,
		ToolFailureCounts: make(map[string]int),
	}
	if len(rows) == 0 {
		return report, nil
	}

	tools := make(map[string]bool)
	successes := 0
	for _, t := range rows {
		report.TotalTraces++
		tools[t.ToolName] = true
		if t.QualityScore >= successThreshold {
			successes++
		} else {
			report.LowQualityCount++
			if t.Action == "tool_failure" {
				report.ToolFailureCounts[t.ToolName]++
			}
		}
	}
	report.DistinctTools = len(tools)
	report.SuccessRate = float64(successes) / float64(report.TotalTraces)
	return report, nil
}
