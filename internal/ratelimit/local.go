package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter keeps one token bucket per key in memory, matching the
// per-client-IP limiter map pattern used for ingress rate limiting, adapted
// here to key on agent/session identifiers instead of IPs.
type LocalLimiter struct {
	mu       sync.Mutex
	rule     Rule
	name     string
	limiters map[string]*rate.Limiter
	lastUsed map[string]time.Time
	maxEntries int
}

// NewLocalLimiter constructs an in-process limiter enforcing rule per key.
func NewLocalLimiter(name string, rule Rule) *LocalLimiter {
	return &LocalLimiter{
		rule:       rule,
		name:       name,
		limiters:   make(map[string]*rate.Limiter),
		lastUsed:   make(map[string]time.Time),
		maxEntries: 10000,
	}
}

// Allow checks and consumes one token for key, creating its bucket lazily.
func (l *LocalLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.rule.ratePerSecond()), l.rule.Burst)
		l.limiters[key] = limiter
		if len(l.limiters) > l.maxEntries {
			l.evictOldestLocked()
		}
	}
	l.lastUsed[key] = time.Now()

	if limiter.Allow() {
		return Decision{Allowed: true}, nil
	}
	return Decision{Allowed: false, Reason: l.name, RetryAfter: l.rule.Window}, nil
}

// evictOldestLocked drops the single least-recently-used bucket. Called
// with mu held, only once the map has grown past maxEntries, so eviction
// cost stays off the common path.
func (l *LocalLimiter) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for k, t := range l.lastUsed {
		if oldestKey == "" || t.Before(oldestAt) {
			oldestKey, oldestAt = k, t
		}
	}
	if oldestKey != "" {
		delete(l.limiters, oldestKey)
		delete(l.lastUsed, oldestKey)
	}
}

// Reset clears all tracked buckets, used in tests and on config reload.
func (l *LocalLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters = make(map[string]*rate.Limiter)
	l.lastUsed = make(map[string]time.Time)
}
