package ratelimit

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// Settings mirrors config.RateLimitConfig's shape without importing
// internal/config, matching the decoupling used between internal/classify
// and its feedback store.
type Settings struct {
	Backend            string
	FailMode           string
	Burst              Rule
	Global             Rule
	PerAgent           Rule
	RedisAddr          string
	RedisDB            int
	RedisDialTimeoutMS int
}

// Build assembles the burst -> global -> per-agent Composite chain
// described by Settings. When Backend is "redis" the global and per-agent
// rules run against a shared Redis instance (so the limit holds across
// memoryd processes); the burst guard always runs locally since it exists
// to protect a single process's own connection pool.
func Build(s Settings) *Composite {
	burst := Named("burst", NewLocalLimiter("burst", s.Burst))

	var global, perAgent namedLimiter
	var fallback []namedLimiter

	if s.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:        s.RedisAddr,
			DB:          s.RedisDB,
			DialTimeout: time.Duration(s.RedisDialTimeoutMS) * time.Millisecond,
		})
		global = Named("global", NewRedisLimiter(client, "global", s.Global))
		perAgent = Named("per_agent", NewRedisLimiter(client, "per_agent", s.PerAgent))
		fallback = []namedLimiter{
			{}, // burst has no fallback slot; index must align with chain order
			Named("global", NewLocalLimiter("global", s.Global)),
			Named("per_agent", NewLocalLimiter("per_agent", s.PerAgent)),
		}
	} else {
		global = Named("global", NewLocalLimiter("global", s.Global))
		perAgent = Named("per_agent", NewLocalLimiter("per_agent", s.PerAgent))
	}

	opts := []CompositeOption{WithFailMode(FailMode(s.FailMode))}
	if len(fallback) > 0 {
		opts = append(opts, WithLocalFallback(fallback...))
	}

	return NewComposite(opts, burst, global, perAgent)
}
