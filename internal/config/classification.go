package config

// ClassificationConfig tunes the text-classification pipeline.
type ClassificationConfig struct {
	CacheSize            int     `yaml:"cache_size"`
	CacheTTLMS           int     `yaml:"cache_ttl_ms"`
	MinConfidence        float64 `yaml:"min_confidence"`
	MaxFeedbackBoost     float64 `yaml:"max_feedback_boost"`
	MaxFeedbackPenalty   float64 `yaml:"max_feedback_penalty"`
	LLMFallbackEnabled   bool    `yaml:"llm_fallback_enabled"`
	LLMFallbackTimeoutMS int     `yaml:"llm_fallback_timeout_ms"`
	// LearningRate scales how far one correction nudges a pattern's
	// multiplier toward the boost or penalty bound.
	LearningRate float64 `yaml:"learning_rate"`
	// FeedbackDecayDays excludes corrections older than this many days from
	// the multiplier's aggregate, so stale feedback stops influencing it.
	FeedbackDecayDays int `yaml:"feedback_decay_days"`
}

func defaultClassificationConfig() ClassificationConfig {
	return ClassificationConfig{
		CacheSize:            2048,
		CacheTTLMS:           10 * 60 * 1000,
		MinConfidence:        0.35,
		MaxFeedbackBoost:     0.5,
		MaxFeedbackPenalty:   0.5,
		LLMFallbackEnabled:   false,
		LLMFallbackTimeoutMS: 5000,
		LearningRate:         0.1,
		FeedbackDecayDays:    90,
	}
}
