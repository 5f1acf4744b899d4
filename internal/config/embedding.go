package config

// EmbeddingConfig configures the embedding engine and the background queue
// that feeds it.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "ollama" or "genai"
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"-"`
	GenAIModel     string `yaml:"genai_model"`
	Dimensions     int    `yaml:"dimensions"`

	MaxConcurrency   int `yaml:"max_concurrency"`
	MaxAttempts      int `yaml:"max_attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms"`
	MaxBackoffMS     int `yaml:"max_backoff_ms"`
	QueueCapacity    int `yaml:"queue_capacity"`

	ReembedBatchSize    int `yaml:"reembed_batch_size"`
	ReembedBatchDelayMS int `yaml:"reembed_batch_delay_ms"`
}

func defaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:            "ollama",
		OllamaEndpoint:      "http://localhost:11434",
		OllamaModel:         "embeddinggemma",
		GenAIModel:          "gemini-embedding-001",
		Dimensions:          768,
		MaxConcurrency:      4,
		MaxAttempts:         5,
		InitialBackoffMS:    200,
		MaxBackoffMS:        10_000,
		QueueCapacity:       1024,
		ReembedBatchSize:    32,
		ReembedBatchDelayMS: 50,
	}
}
