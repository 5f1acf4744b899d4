// Package config loads and holds the boot-time configuration snapshot for
// memoryd. Configuration is read once from YAML, overridden by environment
// variables, and then treated as immutable for the life of the process;
// ReloadConfig exists only so tests can exercise the loader repeatedly.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds every configuration surface memoryd exposes.
type Config struct {
	DataDir string `yaml:"data_dir"`

	Memory         MemoryConfig         `yaml:"memory"`
	Classification ClassificationConfig `yaml:"classification"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Breaker        BreakerConfig        `yaml:"breaker"`
	Cursor         CursorConfig         `yaml:"cursor"`
	Learning       LearningConfig       `yaml:"learning"`
	Librarian      LibrarianConfig      `yaml:"librarian"`
	AutoContext    AutoContextConfig    `yaml:"auto_context"`
	Logging        LoggingConfig        `yaml:"logging"`
	MCP            MCPConfig            `yaml:"mcp"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		DataDir:        "data",
		Memory:         defaultMemoryConfig(),
		Classification: defaultClassificationConfig(),
		Embedding:      defaultEmbeddingConfig(),
		RateLimit:      defaultRateLimitConfig(),
		Breaker:        defaultBreakerConfig(),
		Cursor:         defaultCursorConfig(),
		Learning:       defaultLearningConfig(),
		Librarian:      defaultLibrarianConfig(),
		AutoContext:    defaultAutoContextConfig(),
		Logging:        defaultLoggingConfig(),
		MCP:            defaultMCPConfig(),
	}
}

// Load reads configuration from a YAML file, falling back to defaults (with
// environment overrides applied) when the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration back out as YAML, creating the parent
// directory if necessary.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies the documented environment variable overrides on
// top of whatever was loaded from YAML (or the defaults).
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MEMORYD_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("MEMORYD_DB_PATH"); v != "" {
		c.Memory.DatabasePath = v
	}
	if v := os.Getenv("MEMORYD_AGENT_ID"); v != "" {
		c.AutoContext.DefaultAgentID = v
	}
	if v := os.Getenv("CURSOR_SECRET"); v != "" {
		c.Cursor.Secret = v
	}
	if v := os.Getenv("MEMORYD_REDIS_ADDR"); v != "" {
		c.RateLimit.Redis.Addr = v
	}
	if v := os.Getenv("MEMORYD_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" {
		c.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("GENAI_API_KEY"); v != "" {
		c.Embedding.GenAIAPIKey = v
	}
	if v := os.Getenv("MEMORYD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate reports the first configuration inconsistency found.
func (c *Config) Validate() error {
	if c.Memory.DatabasePath == "" {
		return fmt.Errorf("config: memory.database_path is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("config: embedding.dimensions must be positive")
	}
	if c.RateLimit.Composite.MaxRequests <= 0 {
		return fmt.Errorf("config: rate_limit.composite.max_requests must be positive")
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("config: breaker.failure_threshold must be positive")
	}
	if c.Classification.LearningRate < 0 || c.Classification.LearningRate > 1 {
		return fmt.Errorf("config: classification.learning_rate must be within [0, 1]")
	}
	if c.Classification.FeedbackDecayDays < 0 {
		return fmt.Errorf("config: classification.feedback_decay_days must not be negative")
	}
	return nil
}
