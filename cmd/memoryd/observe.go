package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"memoryd/internal/handler"
	"memoryd/internal/learn"
)

// observeParams is the wire shape for a memory_observe.commit call: exactly
// one of ToolFailure, SubagentCompletion, or ErrorNotification should be
// set, selecting which hook event the learning service records.
type observeParams struct {
	ToolFailure        *observeToolFailure        `json:"toolFailure,omitempty"`
	SubagentCompletion *observeSubagentCompletion `json:"subagentCompletion,omitempty"`
	ErrorNotification  *observeErrorNotification  `json:"errorNotification,omitempty"`
}

type observeToolFailure struct {
	SessionID    string `json:"sessionId"`
	ProjectID    string `json:"projectId"`
	ToolName     string `json:"toolName"`
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
}

type observeSubagentCompletion struct {
	SessionID     string `json:"sessionId"`
	ProjectID     string `json:"projectId"`
	Success       bool   `json:"success"`
	ResultSummary string `json:"resultSummary"`
	ResultSize    int    `json:"resultSize"`
	DurationMS    int64  `json:"durationMs"`
}

type observeErrorNotification struct {
	SessionID string `json:"sessionId"`
	ProjectID string `json:"projectId"`
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
}

// observeHandlers builds the memory_observe tool's single "commit" action,
// routing a session hook event to whichever learn.Service method matches
// the populated field.
func observeHandlers(svc *learn.Service) map[string]handler.Handler {
	return map[string]handler.Handler{
		"commit": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p observeParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("memoryd: decode observe params: %w", err)
			}
			now := time.Now().UTC()

			switch {
			case p.ToolFailure != nil:
				evt := p.ToolFailure
				err := svc.OnToolFailure(ctx, learn.ToolFailureEvent{
					SessionID:    evt.SessionID,
					ProjectID:    evt.ProjectID,
					ToolName:     evt.ToolName,
					ErrorType:    evt.ErrorType,
					ErrorMessage: evt.ErrorMessage,
					Timestamp:    now,
				})
				return map[string]string{"status": "recorded"}, err
			case p.SubagentCompletion != nil:
				evt := p.SubagentCompletion
				err := svc.OnSubagentCompletion(ctx, learn.SubagentCompletionEvent{
					SessionID:     evt.SessionID,
					ProjectID:     evt.ProjectID,
					Success:       evt.Success,
					ResultSummary: evt.ResultSummary,
					ResultSize:    evt.ResultSize,
					DurationMS:    evt.DurationMS,
				})
				return map[string]string{"status": "recorded"}, err
			case p.ErrorNotification != nil:
				evt := p.ErrorNotification
				err := svc.OnErrorNotification(ctx, learn.ErrorNotificationEvent{
					SessionID: evt.SessionID,
					ProjectID: evt.ProjectID,
					ErrorType: evt.ErrorType,
					Message:   evt.Message,
					Timestamp: now,
				})
				return map[string]string{"status": "recorded"}, err
			default:
				return nil, fmt.Errorf("memoryd: observe.commit requires one of toolFailure, subagentCompletion, errorNotification")
			}
		},
	}
}

// observeSchema is the memory_observe tool's input schema: an "action"
// envelope matching every other memory_* tool, with "commit" the only
// supported action.
const observeSchema = `{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ["commit"]},
    "agentId": {"type": "string"},
    "params": {
      "type": "object",
      "properties": {
        "toolFailure": {"type": "object"},
        "subagentCompletion": {"type": "object"},
        "errorNotification": {"type": "object"}
      }
    }
  },
  "required": ["action"]
}`
