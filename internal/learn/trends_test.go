package learn

import (
	"context"
	"testing"
	"time"

	"memoryd/internal/store"
)

type fakeTraceSource struct {
	traces []store.InteractionTrace
}

func (f *fakeTraceSource) ListTraces(ctx context.Context, agentID string, since time.Time, limit int) ([]store.InteractionTrace, error) {
	var out []store.InteractionTrace
	for _, t := range f.traces {
		if agentID != "" && t.AgentID != agentID {
			continue
		}
		if t.CreatedAt.Before(since) {
			continue
		}
		out = append(out, t)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestComputeTrendsAggregatesOutcomes(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	since := now.Add(-time.Hour)

	source := &fakeTraceSource{traces: []store.InteractionTrace{
		{ID: "t-1", AgentID: "agent-1", ToolName: "run_tests", Action: "tool_failure", QualityScore: 0.0, CreatedAt: now.Add(-10 * time.Minute)},
		{ID: "t-2", AgentID: "agent-1", ToolName: "run_tests", Action: "tool_failure", QualityScore: 0.0, CreatedAt: now.Add(-9 * time.Minute)},
		{ID: "t-3", AgentID: "agent-1", ToolName: "deploy", Action: "tool_success", QualityScore: 1.0, CreatedAt: now.Add(-8 * time.Minute)},
		{ID: "t-4", AgentID: "agent-1", ToolName: "deploy", Action: "tool_success", QualityScore: 0.3, CreatedAt: now.Add(-7 * time.Minute)},
	}}

	report, err := ComputeTrends(context.Background(), source, "agent-1", since, 0)
	if err != nil {
		t.Fatalf("ComputeTrends() error = %v", err)
	}
	if report.TotalTraces != 4 {
		t.Fatalf("TotalTraces = %d, want 4", report.TotalTraces)
	}
	if report.SuccessRate != 0.5 {
		t.Fatalf("SuccessRate = %v, want 0.5", report.SuccessRate)
	}
	if report.DistinctTools != 2 {
		t.Fatalf("DistinctTools = %d, want 2", report.DistinctTools)
	}
	if report.LowQualityCount != 2 {
		t.Fatalf("LowQualityCount = %d, want 2", report.LowQualityCount)
	}
	if report.ToolFailureCounts["run_tests"] != 2 {
		t.Fatalf("ToolFailureCounts[run_tests] = %d, want 2", report.ToolFailureCounts["run_tests"])
	}
	if _, ok := report.ToolFailureCounts["deploy"]; ok {
		t.Fatalf("expected no failure count recorded for deploy, since its low-quality trace was not a tool_failure action")
	}
}

func TestComputeTrendsEmptyWindow(t *testing.T) {
	source := &fakeTraceSource{}

	report, err := ComputeTrends(context.Background(), source, "agent-1", time.Now(), 0)
	if err != nil {
		t.Fatalf("ComputeTrends() error = %v", err)
	}
	if report.TotalTraces != 0 {
		t.Fatalf("TotalTraces = %d, want 0", report.TotalTraces)
	}
	if report.SuccessRate != 0 {
		t.Fatalf("SuccessRate = %v, want 0", report.SuccessRate)
	}
	if report.ToolFailureCounts == nil {
		t.Fatalf("expected ToolFailureCounts to be initialized even when empty")
	}
}

func TestComputeTrendsFiltersByAgent(t *testing.T) {
	now := time.Now()
	source := &fakeTraceSource{traces: []store.InteractionTrace{
		{ID: "t-1", AgentID: "agent-1", ToolName: "run_tests", Action: "tool_success", QualityScore: 1.0, CreatedAt: now},
		{ID: "t-2", AgentID: "agent-2", ToolName: "deploy", Action: "tool_success", QualityScore: 1.0, CreatedAt: now},
	}}

	report, err := ComputeTrends(context.Background(), source, "agent-2", now.Add(-time.Minute), 0)
	if err != nil {
		t.Fatalf("ComputeTrends() error = %v", err)
	}
	if report.TotalTraces != 1 {
		t.Fatalf("TotalTraces = %d, want 1", report.TotalTraces)
	}
	if report.DistinctTools != 1 {
		t.Fatalf("DistinctTools = %d, want 1", report.DistinctTools)
	}
}
