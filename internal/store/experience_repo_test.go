package store

import (
	"context"
	"testing"
	"time"
)

func TestExperienceRepoTrajectoryAndOutcome(t *testing.T) {
	a := openTestAdapter(t)
	repo := NewExperienceRepo(a)
	ctx := context.Background()

	env, err := repo.Create(ctx, Scope{Type: ScopeSession, ID: "sess-1"}, ExperiencePayload{
		Title: "Debugging a flaky test",
	}, "agent-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := repo.AddStep(ctx, env.ID, TrajectoryStep{
		Action: "ran go test -run Flaky -count=20", Observation: "failed 3/20", Reasoning: "suspect goroutine race",
	}, "agent-1"); err != nil {
		t.Fatalf("AddStep() error = %v", err)
	}

	final, err := repo.RecordOutcome(ctx, env.ID, "fixed: added mutex around shared counter", 0.85, "race detector confirmed it", "agent-1")
	if err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	if final.Payload.Confidence != 0.85 {
		t.Fatalf("Confidence = %v, want 0.85", final.Payload.Confidence)
	}

	traj, err := repo.GetTrajectory(ctx, env.ID)
	if err != nil {
		t.Fatalf("GetTrajectory() error = %v", err)
	}
	if len(traj) != 1 {
		t.Fatalf("trajectory length = %d, want 1", len(traj))
	}
	if traj[0].Action == "" {
		t.Fatalf("expected trajectory step to round-trip through JSON")
	}
}

func TestExperienceRepoRecordTraceIndependentOfArtifact(t *testing.T) {
	a := openTestAdapter(t)
	repo := NewExperienceRepo(a)

	err := repo.RecordTrace(context.Background(), InteractionTrace{
		ID: "trace-1", SessionID: "sess-1", AgentID: "agent-1",
		ToolName: "run_tests", Action: "ran suite", QualityScore: 0.4,
	})
	if err != nil {
		t.Fatalf("RecordTrace() error = %v", err)
	}

	var count int
	a.db.QueryRow(`SELECT COUNT(*) FROM interaction_traces WHERE id = ?`, "trace-1").Scan(&count)
	if count != 1 {
		t.Fatalf("expected trace to persist even without an Experience artifact")
	}
}

func TestExperienceRepoListTraces(t *testing.T) {
	a := openTestAdapter(t)
	repo := NewExperienceRepo(a)
	ctx := context.Background()
	since := time.Now().Add(-time.Hour)

	traces := []InteractionTrace{
		{ID: "t-1", SessionID: "sess-1", AgentID: "agent-1", ToolName: "run_tests", Action: "tool_failure", QualityScore: 0.0},
		{ID: "t-2", SessionID: "sess-1", AgentID: "agent-1", ToolName: "run_tests", Action: "tool_success", QualityScore: 1.0},
		{ID: "t-3", SessionID: "sess-2", AgentID: "agent-2", ToolName: "deploy", Action: "tool_failure", QualityScore: 0.0},
	}
	for _, tr := range traces {
		if err := repo.RecordTrace(ctx, tr); err != nil {
			t.Fatalf("RecordTrace(%s) error = %v", tr.ID, err)
		}
	}

	all, err := repo.ListTraces(ctx, "", since, 0)
	if err != nil {
		t.Fatalf("ListTraces(all) error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListTraces(all) returned %d traces, want 3", len(all))
	}

	scoped, err := repo.ListTraces(ctx, "agent-1", since, 0)
	if err != nil {
		t.Fatalf("ListTraces(agent-1) error = %v", err)
	}
	if len(scoped) != 2 {
		t.Fatalf("ListTraces(agent-1) returned %d traces, want 2", len(scoped))
	}
	for _, tr := range scoped {
		if tr.AgentID != "agent-1" {
			t.Fatalf("ListTraces(agent-1) returned trace for agent %q", tr.AgentID)
		}
		if tr.CreatedAt.IsZero() {
			t.Fatalf("expected CreatedAt to be populated")
		}
	}

	future, err := repo.ListTraces(ctx, "", time.Now().Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("ListTraces(future) error = %v", err)
	}
	if len(future) != 0 {
		t.Fatalf("ListTraces(future) returned %d traces, want 0", len(future))
	}
}
