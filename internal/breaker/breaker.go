// Package breaker implements a CLOSED/OPEN/HALF_OPEN circuit breaker used
// to shield the memory service from a misbehaving embedding engine or LLM
// classifier fallback, and a registry so many named breakers share one
// config.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is one of the three circuit states.
type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow/Call when the breaker is tripped and not yet
// due for a half-open probe.
var ErrOpen = errors.New("breaker: circuit open")

// Config tunes trip/reset thresholds.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxCalls int
}

// Breaker tracks consecutive failure/success counts the way the upstream
// load balancer tracks backend health, generalized into an explicit state
// machine with a half-open probe budget instead of a single healthy bool.
type Breaker struct {
	name   string
	cfg    Config
	mu     sync.Mutex
	state  State
	fails  int
	succs  int
	openedAt   time.Time
	halfOpenInFlight int
}

// New constructs a Breaker starting CLOSED.
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	return &Breaker{name: name, cfg: cfg, state: Closed}
}

// State reports the current state, transitioning OPEN to HALF_OPEN if
// OpenTimeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpenLocked()
	return b.state
}

func (b *Breaker) maybeTransitionToHalfOpenLocked() {
	if b.state == Open && time.Since(b.openedAt) >= b.cfg.OpenTimeout {
		b.state = HalfOpen
		b.halfOpenInFlight = 0
		b.succs = 0
	}
}

// Allow reports whether a call may proceed, reserving a half-open probe
// slot if the breaker just transitioned. Call RecordSuccess/RecordFailure
// with the outcome afterward.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpenLocked()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
			return false
		}
		b.halfOpenInFlight++
		return true
	default: // Open
		return false
	}
}

// RecordSuccess registers a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.fails = 0
	switch b.state {
	case HalfOpen:
		b.succs++
		if b.succs >= b.cfg.SuccessThreshold {
			b.state = Closed
			b.succs = 0
			b.halfOpenInFlight = 0
		}
	case Open:
		// stray result from a pre-trip call; ignore
	}
}

// RecordFailure registers a failed call, tripping the breaker when
// FailureThreshold is reached, or immediately re-opening from HALF_OPEN.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.fails++
		if b.fails >= b.cfg.FailureThreshold {
			b.trip()
		}
	}
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = time.Now()
	b.fails = 0
	b.succs = 0
	b.halfOpenInFlight = 0
}

// Call runs fn if the breaker allows it, recording the outcome.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := fn(ctx)
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}
