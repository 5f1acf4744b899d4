package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript implements a fixed-capacity sliding window counter:
// ZADD the current timestamp, trim anything older than the window, and
// compare the remaining cardinality against the limit. Atomic via EVAL so
// concurrent callers across processes can't race past the limit.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, 0, now - window_ms)
local count = redis.call("ZCARD", key)
if count >= limit then
	return 0
end
redis.call("ZADD", key, now, member)
redis.call("PEXPIRE", key, window_ms)
return 1
`

// RedisLimiter enforces rule against a shared Redis instance, so the limit
// holds across multiple memoryd processes.
type RedisLimiter struct {
	client *redis.Client
	rule   Rule
	name   string
	script *redis.Script
	keyPrefix string
}

// NewRedisLimiter wraps an already-configured client.
func NewRedisLimiter(client *redis.Client, name string, rule Rule) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		rule:      rule,
		name:      name,
		script:    redis.NewScript(slidingWindowScript),
		keyPrefix: "memoryd:ratelimit:",
	}
}

// Allow evaluates the sliding-window script for key. A connectivity or
// script error is returned to the caller (typically Composite) rather than
// silently allowed, so fail-mode policy is decided in one place.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now().UnixMilli()
	member := key + ":" + time.Now().Format(time.RFC3339Nano)

	res, err := l.script.Run(ctx, l.client, []string{l.keyPrefix + key},
		now, l.rule.Window.Milliseconds(), l.rule.MaxRequests, member).Int()
	if err != nil {
		return Decision{}, errUnavailable("redis")
	}
	if res == 1 {
		return Decision{Allowed: true}, nil
	}
	return Decision{Allowed: false, Reason: l.name, RetryAfter: l.rule.Window}, nil
}

// Ping reports whether the Redis backend is currently reachable, used by
// Composite's fail-mode handling and by health checks.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
