// Package ratelimit enforces request budgets for agents calling into the
// memory service: a burst guard, a per-agent budget, and a global ceiling,
// chained so the first rule to deny a request names the reason.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of a rate check.
type Decision struct {
	Allowed   bool
	Reason    string // which rule denied, empty when Allowed
	RetryAfter time.Duration
}

// Limiter is satisfied by both the in-process and Redis-backed
// implementations, and by the Composite chain built from them.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Rule mirrors config.LimiterRule without importing internal/config.
type Rule struct {
	MaxRequests int
	Window      time.Duration
	Burst       int
}

func (r Rule) ratePerSecond() float64 {
	if r.Window <= 0 {
		return float64(r.MaxRequests)
	}
	return float64(r.MaxRequests) / r.Window.Seconds()
}

// FailMode governs Composite's behavior when the Redis backend is
// unreachable.
type FailMode string

const (
	FailOpen         FailMode = "open"
	FailClosed       FailMode = "closed"
	FailLocalFallback FailMode = "local-fallback"
)

// namedLimiter pairs a Limiter with the reason string it reports on denial,
// so Composite can name the first-denying rule in burst -> global ->
// per-agent order, per the resolution recorded for the composite
// reason-naming open question.
type namedLimiter struct {
	name  string
	limit Limiter
}

func errUnavailable(backend string) error {
	return fmt.Errorf("ratelimit: %s backend unavailable", backend)
}
