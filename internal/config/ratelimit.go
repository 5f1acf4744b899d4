package config

// RateLimitConfig configures the composite token-bucket limiter.
type RateLimitConfig struct {
	Backend            string             `yaml:"backend"` // "local" or "redis"
	FailMode           string             `yaml:"fail_mode"` // "open", "closed", "local-fallback"
	MinBurstProtection float64            `yaml:"min_burst_protection"`
	Burst              LimiterRule        `yaml:"burst"`
	Global             LimiterRule        `yaml:"global"`
	PerAgent           LimiterRule        `yaml:"per_agent"`
	Composite          LimiterRule        `yaml:"composite"`
	Redis              RedisLimiterConfig `yaml:"redis"`
}

// LimiterRule is a single token-bucket rule: MaxRequests tokens refilled
// every WindowMS, with Burst extra tokens available on top of the steady
// rate.
type LimiterRule struct {
	MaxRequests int `yaml:"max_requests"`
	WindowMS    int `yaml:"window_ms"`
	Burst       int `yaml:"burst"`
}

// RedisLimiterConfig configures the remote limiter backend.
type RedisLimiterConfig struct {
	Addr         string `yaml:"addr"`
	DB           int    `yaml:"db"`
	DialTimeoutMS int   `yaml:"dial_timeout_ms"`
}

func defaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Backend:            "local",
		FailMode:           "local-fallback",
		MinBurstProtection: 1.0,
		Burst:              LimiterRule{MaxRequests: 10, WindowMS: 1000, Burst: 5},
		Global:             LimiterRule{MaxRequests: 600, WindowMS: 60_000, Burst: 50},
		PerAgent:           LimiterRule{MaxRequests: 120, WindowMS: 60_000, Burst: 20},
		Composite:          LimiterRule{MaxRequests: 120, WindowMS: 60_000, Burst: 20},
		Redis: RedisLimiterConfig{
			Addr:          "localhost:6379",
			DB:            0,
			DialTimeoutMS: 500,
		},
	}
}
