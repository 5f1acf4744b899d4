package config

// BreakerConfig configures the circuit breaker registry's default behavior.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	SuccessThreshold int `yaml:"success_threshold"`
	OpenTimeoutMS    int `yaml:"open_timeout_ms"`
	HalfOpenMaxCalls int `yaml:"half_open_max_calls"`
}

func defaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeoutMS:    30_000,
		HalfOpenMaxCalls: 1,
	}
}
