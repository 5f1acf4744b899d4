package config

// LearningConfig controls the hook-driven learning service.
type LearningConfig struct {
	Enabled                 bool `yaml:"enabled"`
	MinQualityToPersist     float64 `yaml:"min_quality_to_persist"`
	SessionDedupWindow      int  `yaml:"session_dedup_window"`
	LibrarianTriggerCount   int  `yaml:"librarian_trigger_count"`
	LibrarianTriggerWindowMS int `yaml:"librarian_trigger_window_ms"`
}

func defaultLearningConfig() LearningConfig {
	return LearningConfig{
		Enabled:                  true,
		MinQualityToPersist:      0.3,
		SessionDedupWindow:       500,
		LibrarianTriggerCount:    25,
		LibrarianTriggerWindowMS: 30 * 60 * 1000,
	}
}

// LibrarianConfig controls the batch-analysis recommendation service.
type LibrarianConfig struct {
	MaxConcurrentJobs   int `yaml:"max_concurrent_jobs"`
	JobTimeoutMS        int `yaml:"job_timeout_ms"`
	MinClusterSize      int `yaml:"min_cluster_size"`
	PromotionConfidence float64 `yaml:"promotion_confidence"`
}

func defaultLibrarianConfig() LibrarianConfig {
	return LibrarianConfig{
		MaxConcurrentJobs:   1,
		JobTimeoutMS:        5 * 60 * 1000,
		MinClusterSize:      3,
		PromotionConfidence: 0.7,
	}
}
