// Package learn turns hook events emitted by agent sessions — tool
// failures, subagent completions, ad hoc error notifications — into
// Experience artifacts, while also appending every event as a raw
// interaction trace regardless of whether an artifact was created.
package learn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"memoryd/internal/logging"
	"memoryd/internal/store"
)

// ToolFailureEvent is the payload delivered when a tool invocation fails
// during an agent session.
type ToolFailureEvent struct {
	SessionID    string
	ProjectID    string
	ToolName     string
	ErrorType    string
	ErrorMessage string
	Timestamp    time.Time
}

// SubagentCompletionEvent is the payload delivered when a subagent run
// finishes, successfully or not.
type SubagentCompletionEvent struct {
	SessionID     string
	ProjectID     string
	Success       bool
	ResultSummary string
	ResultSize    int
	DurationMS    int64
}

// ErrorNotificationEvent is the payload delivered for an ad hoc error report
// not tied to a specific tool invocation.
type ErrorNotificationEvent struct {
	SessionID string
	ProjectID string
	ErrorType string
	Message   string
	Timestamp time.Time
}

// ExperienceCreator is the subset of store.ExperienceRepo the service needs,
// narrowed to an interface so tests can substitute a fake.
type ExperienceCreator interface {
	Create(ctx context.Context, scope store.Scope, payload store.ExperiencePayload, createdBy string) (*store.Envelope[store.ExperiencePayload], error)
	RecordTrace(ctx context.Context, trace store.InteractionTrace) error
}

// Config tunes thresholds, mirroring config.LearningConfig.
type Config struct {
	MinFailuresForExperience int
	SignificantSummaryLen    int
	ErrorPatternThreshold    int
	ErrorPatternWindow       time.Duration
	LibrarianTriggerCount    int
	LibrarianTriggerWindow   time.Duration
}

// LibrarianTrigger is called once enough learning activity has accumulated
// within LibrarianTriggerWindow, handing off to the batch analysis service.
type LibrarianTrigger func(ctx context.Context)

// Service ingests hook events. All per-session state is scoped to a session
// ID and wiped by EndSession; interaction_traces rows persist regardless.
type Service struct {
	cfg      Config
	exp      ExperienceCreator
	trigger  LibrarianTrigger

	mu              sync.Mutex
	failureCounts   map[failureKey]int
	dedup           map[failureKey]bool
	errorWindows    map[errorKey][]time.Time
	activitySince   time.Time
	activityCount   int
}

type failureKey struct {
	sessionID, toolName, errorType string
}

type errorKey struct {
	sessionID, errorType string
}

// New constructs a Service. trigger may be nil if librarian handoff isn't wired.
func New(cfg Config, exp ExperienceCreator, trigger LibrarianTrigger) *Service {
	return &Service{
		cfg:           cfg,
		exp:           exp,
		trigger:       trigger,
		failureCounts: make(map[failureKey]int),
		dedup:         make(map[failureKey]bool),
		errorWindows:  make(map[errorKey][]time.Time),
		activitySince: time.Now(),
	}
}

// OnToolFailure increments a per-(session,tool,errorType) counter and
// creates a tool-failure experience once minFailuresForExperience is
// reached, deduplicated thereafter within the same session.
func (s *Service) OnToolFailure(ctx context.Context, evt ToolFailureEvent) error {
	s.recordTrace(ctx, evt.SessionID, "tool_failure", evt.ToolName,
		fmt.Sprintf("%s: %s", evt.ErrorType, evt.ErrorMessage), false)

	key := failureKey{evt.SessionID, evt.ToolName, evt.ErrorType}

	s.mu.Lock()
	if s.dedup[key] {
		s.mu.Unlock()
		return nil
	}
	s.failureCounts[key]++
	count := s.failureCounts[key]
	threshold := s.cfg.MinFailuresForExperience
	if threshold <= 0 {
		threshold = 2
	}
	reachedThreshold := count >= threshold
	if reachedThreshold {
		s.dedup[key] = true
	}
	s.mu.Unlock()

	if !reachedThreshold {
		return nil
	}

	_, err := s.exp.Create(ctx, store.Scope{Type: store.ScopeSession, ID: evt.SessionID}, store.ExperiencePayload{
		Title: fmt.Sprintf("Repeated %s failure in %s", evt.ErrorType, evt.ToolName),
		Trajectory: []store.TrajectoryStep{{
			Action:      evt.ToolName,
			Observation: evt.ErrorMessage,
			Reasoning:   fmt.Sprintf("failed %d consecutive times with errorType=%s", count, evt.ErrorType),
			Timestamp:   evt.Timestamp,
		}},
		Outcome: "tool-failure",
	}, "hook:tool-failure")
	if err != nil {
		logging.Get(logging.CategoryLearn).Error("failed to create tool-failure experience: %v", err)
		return err
	}

	s.noteActivity(ctx)
	return nil
}

// OnSubagentCompletion creates a subagent-failure experience on failure, or
// a subagent-success experience when the result summary clears
// SignificantSummaryLen.
func (s *Service) OnSubagentCompletion(ctx context.Context, evt SubagentCompletionEvent) error {
	s.recordTrace(ctx, evt.SessionID, "subagent_completion", "", evt.ResultSummary, evt.Success)

	if !evt.Success {
		_, err := s.exp.Create(ctx, store.Scope{Type: store.ScopeSession, ID: evt.SessionID}, store.ExperiencePayload{
			Title:   "Subagent run failed",
			Outcome: "subagent-failure",
			Trajectory: []store.TrajectoryStep{{
				Observation: evt.ResultSummary,
				Reasoning:   fmt.Sprintf("duration=%dms resultSize=%d", evt.DurationMS, evt.ResultSize),
			}},
		}, "hook:subagent-completion")
		if err != nil {
			logging.Get(logging.CategoryLearn).Error("failed to create subagent-failure experience: %v", err)
			return err
		}
		s.noteActivity(ctx)
		return nil
	}

	threshold := s.cfg.SignificantSummaryLen
	if threshold <= 0 {
		threshold = 200
	}
	if len(evt.ResultSummary) < threshold {
		return nil
	}

	_, err := s.exp.Create(ctx, store.Scope{Type: store.ScopeSession, ID: evt.SessionID}, store.ExperiencePayload{
		Title:   "Subagent produced a significant result",
		Outcome: "subagent-success",
		Trajectory: []store.TrajectoryStep{{
			Observation: evt.ResultSummary,
			Reasoning:   fmt.Sprintf("duration=%dms resultSize=%d", evt.DurationMS, evt.ResultSize),
		}},
	}, "hook:subagent-completion")
	if err != nil {
		logging.Get(logging.CategoryLearn).Error("failed to create subagent-success experience: %v", err)
		return err
	}
	s.noteActivity(ctx)
	return nil
}

// OnErrorNotification tracks a sliding window of error occurrences per
// (session, errorType), emitting an error-pattern experience once
// ErrorPatternThreshold occurrences land within ErrorPatternWindow.
func (s *Service) OnErrorNotification(ctx context.Context, evt ErrorNotificationEvent) error {
	s.recordTrace(ctx, evt.SessionID, "error_notification", "", evt.Message, false)

	key := errorKey{evt.SessionID, evt.ErrorType}
	window := s.cfg.ErrorPatternWindow
	if window <= 0 {
		window = 30 * time.Minute
	}
	threshold := s.cfg.ErrorPatternThreshold
	if threshold <= 0 {
		threshold = 3
	}

	s.mu.Lock()
	cutoff := evt.Timestamp.Add(-window)
	occurrences := s.errorWindows[key]
	kept := occurrences[:0]
	for _, t := range occurrences {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, evt.Timestamp)
	s.errorWindows[key] = kept
	reached := len(kept) >= threshold
	if reached {
		s.errorWindows[key] = nil
	}
	s.mu.Unlock()

	if !reached {
		return nil
	}

	_, err := s.exp.Create(ctx, store.Scope{Type: store.ScopeSession, ID: evt.SessionID}, store.ExperiencePayload{
		Title:   fmt.Sprintf("Recurring %s error pattern", evt.ErrorType),
		Outcome: "error-pattern",
		Trajectory: []store.TrajectoryStep{{
			Observation: evt.Message,
			Reasoning:   fmt.Sprintf("%d occurrences of errorType=%s within %s", threshold, evt.ErrorType, window),
			Timestamp:   evt.Timestamp,
		}},
	}, "hook:error-notification")
	if err != nil {
		logging.Get(logging.CategoryLearn).Error("failed to create error-pattern experience: %v", err)
		return err
	}
	s.noteActivity(ctx)
	return nil
}

// EndSession wipes per-session counters, dedup sets, and error windows.
// interaction_traces rows are durable history and are never touched here.
func (s *Service) EndSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.failureCounts {
		if k.sessionID == sessionID {
			delete(s.failureCounts, k)
			delete(s.dedup, k)
		}
	}
	for k := range s.errorWindows {
		if k.sessionID == sessionID {
			delete(s.errorWindows, k)
		}
	}
}

func (s *Service) recordTrace(ctx context.Context, sessionID, action, toolName, observation string, success bool) {
	quality := 0.0
	if success {
		quality = 1.0
	}
	err := s.exp.RecordTrace(ctx, store.InteractionTrace{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		ToolName:     toolName,
		Action:       action,
		Observation:  observation,
		QualityScore: quality,
	})
	if err != nil {
		logging.Get(logging.CategoryLearn).Warn("failed to record interaction trace: %v", err)
	}
}

// noteActivity increments the librarian-handoff activity counter and fires
// trigger once LibrarianTriggerCount activity events land within
// LibrarianTriggerWindow.
func (s *Service) noteActivity(ctx context.Context) {
	if s.trigger == nil {
		return
	}

	window := s.cfg.LibrarianTriggerWindow
	if window <= 0 {
		window = 30 * time.Minute
	}
	threshold := s.cfg.LibrarianTriggerCount
	if threshold <= 0 {
		threshold = 25
	}

	s.mu.Lock()
	if time.Since(s.activitySince) > window {
		s.activitySince = time.Now()
		s.activityCount = 0
	}
	s.activityCount++
	fire := s.activityCount >= threshold
	if fire {
		s.activityCount = 0
		s.activitySince = time.Now()
	}
	s.mu.Unlock()

	if fire {
		s.trigger(ctx)
	}
}
