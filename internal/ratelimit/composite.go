package ratelimit

import (
	"context"

	"memoryd/internal/logging"
)

// Composite chains rules in a fixed order — burst, then global, then
// per-agent — and stops at the first denial, reporting that rule's name as
// the reason. This ordering is deliberate: a burst guard should reject
// before the more expensive/shared global and per-agent checks run.
type Composite struct {
	chain    []namedLimiter
	failMode FailMode
	fallback []namedLimiter // local limiters used when the primary backend errors
}

// CompositeOption configures optional fallback behavior.
type CompositeOption func(*Composite)

// WithFailMode sets how Composite behaves when a rule's Allow call errors
// (e.g. Redis unreachable).
func WithFailMode(mode FailMode) CompositeOption {
	return func(c *Composite) { c.failMode = mode }
}

// WithLocalFallback supplies the limiters used in FailLocalFallback mode.
func WithLocalFallback(chain ...namedLimiter) CompositeOption {
	return func(c *Composite) { c.fallback = chain }
}

// NewComposite builds a chain from (name, limiter) pairs, evaluated in the
// order given.
func NewComposite(opts []CompositeOption, chain ...namedLimiter) *Composite {
	c := &Composite{chain: chain, failMode: FailLocalFallback}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Named pairs a limiter with the name it reports on denial. Exported so
// callers outside this package can assemble a Composite's chain.
func Named(name string, limit Limiter) namedLimiter {
	return namedLimiter{name: name, limit: limit}
}

// Allow runs the chain in order, returning the first denial encountered. An
// error from one rule is handled per failMode: FailOpen lets the request
// through, FailClosed denies it, FailLocalFallback retries that rule
// against the matching fallback limiter (by position) if one was supplied.
func (c *Composite) Allow(ctx context.Context, key string) (Decision, error) {
	log := logging.Get(logging.CategoryRateLimit)

	for i, rule := range c.chain {
		decision, err := rule.limit.Allow(ctx, key)
		if err != nil {
			switch c.failMode {
			case FailOpen:
				log.Warn("rate limiter %q unavailable, failing open: %v", rule.name, err)
				continue
			case FailClosed:
				return Decision{Allowed: false, Reason: rule.name + ".unavailable"}, nil
			case FailLocalFallback:
				if i < len(c.fallback) {
					decision, err = c.fallback[i].limit.Allow(ctx, key)
					if err != nil {
						return Decision{Allowed: false, Reason: rule.name + ".unavailable"}, nil
					}
				} else {
					return Decision{Allowed: false, Reason: rule.name + ".unavailable"}, nil
				}
			}
		}
		if !decision.Allowed {
			return decision, nil
		}
	}
	return Decision{Allowed: true}, nil
}
