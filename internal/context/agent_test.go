package context

import (
	"context"
	"testing"
)

func TestWithAgentIDRoundTripsThroughContext(t *testing.T) {
	ctx := WithAgentID(context.Background(), "agent-7")
	if got := AgentIDFromContext(ctx); got != "agent-7" {
		t.Fatalf("AgentIDFromContext() = %q, want agent-7", got)
	}
}

func TestAgentIDFromContextEmptyWhenUnset(t *testing.T) {
	if got := AgentIDFromContext(context.Background()); got != "" {
		t.Fatalf("AgentIDFromContext(unset) = %q, want empty", got)
	}
}
