package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	memcontext "memoryd/internal/context"
	"memoryd/internal/handler"
)

// ActionTool adapts a handler.Factory's operation map into the single
// memory_<kind> tool with an "action" field the dispatcher uses to pick
// add/update/get/list/history/deactivate/delete/bulk_add/bulk_update/
// bulk_delete.
type ActionTool struct {
	name        string
	description string
	schema      json.RawMessage
	actions     map[string]handler.Handler
}

// NewActionTool builds the memory_<kind> tool over a Factory's Handlers().
func NewActionTool(kind, description string, schema json.RawMessage, actions map[string]handler.Handler) *ActionTool {
	return &ActionTool{
		name:        "memory_" + kind,
		description: description,
		schema:      schema,
		actions:     actions,
	}
}

func (t *ActionTool) Name() string                  { return t.name }
func (t *ActionTool) Description() string            { return t.description }
func (t *ActionTool) InputSchema() json.RawMessage   { return t.schema }

type actionEnvelope struct {
	Action  string          `json:"action"`
	AgentID string          `json:"agentId,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Execute decodes {action, agentId, params}, attaches agentId to ctx for
// downstream permission checks and audit logging, and dispatches to the
// matching handler.
func (t *ActionTool) Execute(ctx context.Context, params json.RawMessage) (*ToolsCallResult, error) {
	var env actionEnvelope
	if err := json.Unmarshal(params, &env); err != nil {
		return nil, fmt.Errorf("mcp: decode action envelope: %w", err)
	}
	if env.AgentID != "" {
		ctx = memcontext.WithAgentID(ctx, env.AgentID)
	}
	if env.Action == "" {
		return ErrorResult(fmt.Sprintf("%s: action is required", t.name)), nil
	}

	fn, ok := t.actions[env.Action]
	if !ok {
		return ErrorResult(fmt.Sprintf("%s: unknown action %q", t.name, env.Action)), nil
	}

	result, err := fn(ctx, env.Params)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}
	return JSONResult(result)
}
