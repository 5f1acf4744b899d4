package context

import "context"

// agentIDKey is an unexported type so only this package can mint the
// context key, the same pattern codenerd uses for request-scoped values
// (e.g. internal/session/executor.go).
type agentIDKey struct{}

// WithAgentID attaches the resolved agent ID to ctx, for downstream
// permission checks and audit logging to read back without re-resolving it.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, agentIDKey{}, agentID)
}

// AgentIDFromContext returns the agent ID WithAgentID attached, or "" if
// none was set.
func AgentIDFromContext(ctx context.Context) string {
	agentID, _ := ctx.Value(agentIDKey{}).(string)
	return agentID
}
