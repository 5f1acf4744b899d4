package main

import (
	"context"
	"encoding/json"
	"fmt"

	"memoryd/internal/classify"
	"memoryd/internal/handler"
)

type classifySuggestParams struct {
	Text string `json:"text"`
}

type classifyFeedbackParams struct {
	PatternID string `json:"patternId"`
	Positive  bool   `json:"positive"`
}

// classifyHandlers builds the memory_classify tool: "suggest" runs free
// text through the pattern classifier ahead of an add call, "feedback"
// reports back whether the suggested kind was accepted so future scores
// adjust.
func classifyHandlers(classifier *classify.Classifier) map[string]handler.Handler {
	return map[string]handler.Handler{
		"suggest": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p classifySuggestParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("memoryd: decode classify suggest params: %w", err)
			}
			return classifier.Classify(ctx, p.Text)
		},
		"feedback": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p classifyFeedbackParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("memoryd: decode classify feedback params: %w", err)
			}
			if err := classifier.RecordFeedback(ctx, p.PatternID, p.Positive); err != nil {
				return nil, err
			}
			return map[string]string{"status": "recorded"}, nil
		},
	}
}

const classifySchema = `{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ["suggest", "feedback"]},
    "agentId": {"type": "string"},
    "params": {
      "type": "object",
      "properties": {
        "text": {"type": "string"},
        "patternId": {"type": "string"},
        "positive": {"type": "boolean"}
      }
    }
  },
  "required": ["action"]
}`
