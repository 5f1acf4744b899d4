package config

// CursorConfig configures signed pagination cursors.
type CursorConfig struct {
	Secret   string `yaml:"-"`
	TTLMS    int    `yaml:"ttl_ms"`
	MaxBytes int    `yaml:"max_bytes"`
}

func defaultCursorConfig() CursorConfig {
	return CursorConfig{
		TTLMS:    15 * 60 * 1000,
		MaxBytes: 10 * 1024,
	}
}
