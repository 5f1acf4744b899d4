package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// TrajectoryStep is one step of an Experience's recorded trajectory: an
// action taken, the observation it produced, and the reasoning behind it.
// This mirrors a ReasoningTrace shape (action/observation/
// reasoning), renamed to the artifact-kind's own vocabulary.
type TrajectoryStep struct {
	Action      string    `json:"action"`
	Observation string    `json:"observation"`
	Reasoning   string    `json:"reasoning"`
	Timestamp   time.Time `json:"timestamp"`
}

// ExperiencePayload is the version-specific content of an Experience
// artifact: a recorded trajectory plus its outcome and confidence.
type ExperiencePayload struct {
	Title      string
	Trajectory []TrajectoryStep
	Outcome    string
	Confidence float64
	Rationale  string
}

// ExperienceRepo stores recorded trajectories agents learned from.
type ExperienceRepo struct {
	*envelopeStore[ExperiencePayload]
}

// NewExperienceRepo wires an ExperienceRepo against an already-open Adapter.
func NewExperienceRepo(adapter *Adapter) *ExperienceRepo {
	spec := versionSpec[ExperiencePayload]{
		EntryTable:   "experiences",
		VersionTable: "experience_versions",
		EntryType:    "experience",
		Marshal: func(p ExperiencePayload) ([]string, []interface{}) {
			traj, _ := json.Marshal(p.Trajectory)
			return []string{"title", "trajectory", "outcome", "confidence", "rationale"},
				[]interface{}{p.Title, string(traj), p.Outcome, p.Confidence, p.Rationale}
		},
		ContentHash: func(p ExperiencePayload) string {
			traj, _ := json.Marshal(p.Trajectory)
			return hashPayload([]byte(p.Title + "\x00" + string(traj) + "\x00" + p.Outcome))
		},
		selectColumns: func() []string {
			return []string{"title", "trajectory", "outcome", "confidence", "rationale"}
		},
		scanRowInto: func(row *sql.Row, version *int) (ExperiencePayload, error) {
			var p ExperiencePayload
			var traj string
			if err := row.Scan(version, &p.Title, &traj, &p.Outcome, &p.Confidence, &p.Rationale); err != nil {
				return p, err
			}
			json.Unmarshal([]byte(traj), &p.Trajectory)
			return p, nil
		},
	}
	return &ExperienceRepo{envelopeStore: newEnvelopeStore(adapter, spec)}
}

// AddStep appends a trajectory step to an experience's current version by
// creating a new version with the extended trajectory, preserving the
// immutable version-chain invariant (steps are never mutated in place).
func (r *ExperienceRepo) AddStep(ctx context.Context, entryID string, step TrajectoryStep, updatedBy string) (*Envelope[ExperiencePayload], error) {
	current, err := r.GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("store: add trajectory step: %w", err)
	}
	if step.Timestamp.IsZero() {
		step.Timestamp = time.Now().UTC()
	}
	current.Payload.Trajectory = append(current.Payload.Trajectory, step)
	return r.Update(ctx, entryID, current.Payload, updatedBy)
}

// GetTrajectory returns the current version's recorded steps.
func (r *ExperienceRepo) GetTrajectory(ctx context.Context, entryID string) ([]TrajectoryStep, error) {
	env, err := r.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return env.Payload.Trajectory, nil
}

// RecordOutcome sets the terminal outcome and confidence for an experience,
// appended as a new version like any other mutation.
func (r *ExperienceRepo) RecordOutcome(ctx context.Context, entryID, outcome string, confidence float64, rationale, updatedBy string) (*Envelope[ExperiencePayload], error) {
	current, err := r.GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("store: record outcome: %w", err)
	}
	current.Payload.Outcome = outcome
	current.Payload.Confidence = confidence
	current.Payload.Rationale = rationale
	return r.Update(ctx, entryID, current.Payload, updatedBy)
}

// RecordTrace appends a raw interaction trace independent of any Experience
// artifact, feeding the learning trend analytics surface.
func (r *ExperienceRepo) RecordTrace(ctx context.Context, trace InteractionTrace) error {
	_, err := r.adapter.db.ExecContext(ctx, `
		INSERT INTO interaction_traces (id, session_id, agent_id, tool_name, action, observation, reasoning, quality_score, learning_notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.ID, trace.SessionID, trace.AgentID, trace.ToolName, trace.Action, trace.Observation,
		trace.Reasoning, trace.QualityScore, trace.LearningNotes, time.Now().UTC())
	return err
}

// InteractionTrace is a raw per-hook-event record, written regardless of
// whether the event produced an Experience artifact.
type InteractionTrace struct {
	ID            string
	SessionID     string
	AgentID       string
	ToolName      string
	Action        string
	Observation   string
	Reasoning     string
	QualityScore  float64
	LearningNotes string
	CreatedAt     time.Time
}

// ListTraces returns interaction traces since a point in time, optionally
// narrowed to one agent, newest first, feeding trend-analysis queries that
// need the raw per-hook-event history rather than any single Experience.
func (r *ExperienceRepo) ListTraces(ctx context.Context, agentID string, since time.Time, limit int) ([]InteractionTrace, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT id, session_id, agent_id, tool_name, action, observation, reasoning, quality_score, learning_notes, created_at
		FROM interaction_traces WHERE created_at >= ?`
	args := []interface{}{since.UTC()}
	if agentID != "" {
		query += " AND agent_id = ?"
		args = append(args, agentID)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.adapter.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list interaction traces: %w", err)
	}
	defer rows.Close()

	var out []InteractionTrace
	for rows.Next() {
		var t InteractionTrace
		if err := rows.Scan(&t.ID, &t.SessionID, &t.AgentID, &t.ToolName, &t.Action, &t.Observation, &t.Reasoning, &t.QualityScore, &t.LearningNotes, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
