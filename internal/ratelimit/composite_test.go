package ratelimit

import (
	"context"
	"errors"
	"testing"
)

type fakeLimiter struct {
	decision Decision
	err      error
	calls    int
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	f.calls++
	return f.decision, f.err
}

func TestCompositeStopsAtFirstDenyingRule(t *testing.T) {
	burst := &fakeLimiter{decision: Decision{Allowed: true}}
	global := &fakeLimiter{decision: Decision{Allowed: false}}
	perAgent := &fakeLimiter{decision: Decision{Allowed: true}}

	c := NewComposite(nil, Named("burst", burst), Named("global", global), Named("per_agent", perAgent))

	d, err := c.Allow(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected denial from global rule")
	}
	if d.Reason != "global" {
		t.Fatalf("Reason = %q, want %q", d.Reason, "global")
	}
	if perAgent.calls != 0 {
		t.Fatalf("expected chain to stop before per_agent rule, but it was called %d times", perAgent.calls)
	}
}

func TestCompositeAllowsWhenEveryRulePasses(t *testing.T) {
	c := NewComposite(nil,
		Named("burst", &fakeLimiter{decision: Decision{Allowed: true}}),
		Named("global", &fakeLimiter{decision: Decision{Allowed: true}}),
		Named("per_agent", &fakeLimiter{decision: Decision{Allowed: true}}),
	)

	d, err := c.Allow(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected composite to allow when every rule passes")
	}
}

func TestCompositeFailClosedDeniesOnBackendError(t *testing.T) {
	broken := &fakeLimiter{err: errors.New("redis down")}
	c := NewComposite([]CompositeOption{WithFailMode(FailClosed)}, Named("global", broken))

	d, err := c.Allow(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected FailClosed to deny when the backend errors")
	}
}

func TestCompositeFailOpenAllowsOnBackendError(t *testing.T) {
	broken := &fakeLimiter{err: errors.New("redis down")}
	c := NewComposite([]CompositeOption{WithFailMode(FailOpen)}, Named("global", broken))

	d, err := c.Allow(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected FailOpen to allow when the backend errors")
	}
}

func TestCompositeFailLocalFallbackUsesFallbackLimiter(t *testing.T) {
	broken := &fakeLimiter{err: errors.New("redis down")}
	fallback := &fakeLimiter{decision: Decision{Allowed: false}}

	c := NewComposite(
		[]CompositeOption{WithFailMode(FailLocalFallback), WithLocalFallback(Named("global", fallback))},
		Named("global", broken),
	)

	d, err := c.Allow(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected fallback limiter's denial to propagate")
	}
	if fallback.calls != 1 {
		t.Fatalf("expected fallback limiter to be consulted exactly once, got %d", fallback.calls)
	}
}
