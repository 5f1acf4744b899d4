package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// GenAIEngine calls Google's GenAI embedding REST endpoint directly rather
// than importing the vendor SDK, since only the embedding engine's
// *interface* is in scope here, not a particular client library.
type GenAIEngine struct {
	apiKey string
	model  string
	dims   int
	client *http.Client
}

func NewGenAIEngine(cfg Config) *GenAIEngine {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 3072
	}
	return &GenAIEngine{
		apiKey: cfg.GenAIAPIKey,
		model:  cfg.GenAIModel,
		dims:   dims,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *GenAIEngine) Name() string    { return "genai:" + e.model }
func (e *GenAIEngine) Dimensions() int { return e.dims }

type genAIEmbedRequest struct {
	Model   string `json:"model"`
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
	TaskType string `json:"taskType,omitempty"`
}

type genAIEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (e *GenAIEngine) buildRequest(ctx context.Context, text string, task TaskType) (*http.Request, error) {
	var payload genAIEmbedRequest
	payload.Model = e.model
	payload.Content.Parts = append(payload.Content.Parts, struct {
		Text string `json:"text"`
	}{Text: text})
	if task != "" {
		payload.TaskType = string(task)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal genai request: %w", err)
	}

	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:embedContent?key=%s", e.model, e.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build genai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (e *GenAIEngine) EmbedWithTask(ctx context.Context, text string, task TaskType) ([]float32, error) {
	req, err := e.buildRequest(ctx, text, task)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: genai request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding: genai returned status %d", resp.StatusCode)
	}

	var out genAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embedding: decode genai response: %w", err)
	}
	return out.Embedding.Values, nil
}

func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.EmbedWithTask(ctx, text, "")
}

func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embedding: batch item %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}
