// Package embedding provides vector embedding generation for memoryd's
// semantic search. Supports multiple backends behind one interface: Ollama
// (local) and Google GenAI (cloud), the same two backends a prior
// embedding engine names, generalized here for this module's scope instead
// of a coding agent's context.
package embedding

import (
	"context"
	"fmt"
)

// TaskType distinguishes how an embedding will be used, since some
// providers produce different vectors for storage versus query text.
type TaskType string

const (
	TaskRetrievalDocument TaskType = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    TaskType = "RETRIEVAL_QUERY"
)

// Engine generates embeddings for text.
type Engine interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// TaskAwareEngine is implemented by engines whose output differs depending
// on whether the text is being stored or searched for.
type TaskAwareEngine interface {
	Engine
	EmbedWithTask(ctx context.Context, text string, task TaskType) ([]float32, error)
}

// HealthChecker is implemented by engines that can report liveness
// independent of a real embed call (e.g. pinging Ollama's /api/tags).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config selects and configures the active engine.
type Config struct {
	Provider       string `yaml:"provider"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"-"`
	GenAIModel     string `yaml:"genai_model"`
	Dimensions     int    `yaml:"dimensions"`
}

// NewEngine constructs the engine named by cfg.Provider.
func NewEngine(cfg Config) (Engine, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllamaEngine(cfg), nil
	case "genai":
		return NewGenAIEngine(cfg), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
}

// GetOptimalTaskType picks the task type for a given storage/search
// operation name.
func GetOptimalTaskType(operation string) TaskType {
	if operation == "search" || operation == "query" {
		return TaskRetrievalQuery
	}
	return TaskRetrievalDocument
}

// EmbedForTask calls EmbedWithTask when the engine supports it, otherwise
// falls back to a plain Embed call.
func EmbedForTask(ctx context.Context, engine Engine, text string, task TaskType) ([]float32, error) {
	if aware, ok := engine.(TaskAwareEngine); ok {
		return aware.EmbedWithTask(ctx, text, task)
	}
	return engine.Embed(ctx, text)
}
