package config

// LoggingConfig controls both the category file logger and the zap logger
// used at the CLI boundary.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		DebugMode:  false,
		Level:      "info",
		JSONFormat: false,
		Categories: nil,
	}
}
