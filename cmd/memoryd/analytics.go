package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"memoryd/internal/handler"
	"memoryd/internal/learn"
)

type analyticsTrendsParams struct {
	AgentID  string `json:"agentId"`
	SinceMS  int64  `json:"sinceMs"`
	Limit    int    `json:"limit"`
}

// analyticsHandlers builds the memory_analytics tool's single "trends"
// action over the raw interaction trace history.
func analyticsHandlers(traces learn.TraceSource) map[string]handler.Handler {
	return map[string]handler.Handler{
		"trends": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p analyticsTrendsParams
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &p); err != nil {
					return nil, fmt.Errorf("memoryd: decode analytics trends params: %w", err)
				}
			}
			since := time.Unix(0, p.SinceMS*int64(time.Millisecond))
			if p.SinceMS == 0 {
				since = time.Now().Add(-7 * 24 * time.Hour)
			}
			return learn.ComputeTrends(ctx, traces, p.AgentID, since, p.Limit)
		},
	}
}

const analyticsSchema = `{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ["trends"]},
    "agentId": {"type": "string"},
    "params": {
      "type": "object",
      "properties": {
        "agentId": {"type": "string"},
        "sinceMs": {"type": "integer"},
        "limit": {"type": "integer"}
      }
    }
  },
  "required": ["action"]
}`
