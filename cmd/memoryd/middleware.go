package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	memcontext "memoryd/internal/context"
	"memoryd/internal/handler"
	"memoryd/internal/metrics"
	"memoryd/internal/ratelimit"
)

// instrument wraps a kind's operation map with the cross-cutting concerns
// every request needs regardless of which artifact kind it targets: a rate
// limit check keyed on the calling agent, latency/outcome metrics, and a
// fire-and-forget audit log entry. Built once per kind at boot rather than
// threaded through handler.Factory so the dispatcher stays storage-only.
func instrument(kind string, handlers map[string]handler.Handler, limiter *ratelimit.Composite, met *metrics.Metrics, audit *metrics.AuditWriter) map[string]handler.Handler {
	wrapped := make(map[string]handler.Handler, len(handlers))
	for op, fn := range handlers {
		op, fn := op, fn
		wrapped[op] = func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			agentID := memcontext.AgentIDFromContext(ctx)
			key := agentID
			if key == "" {
				key = "anonymous"
			}

			decision, err := limiter.Allow(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("memoryd: rate limit check: %w", err)
			}
			if !decision.Allowed {
				met.RateLimitRejections.WithLabelValues(decision.Reason).Inc()
				return nil, fmt.Errorf("memoryd: rate limit exceeded for %s (%s)", key, decision.Reason)
			}

			start := time.Now()
			result, opErr := fn(ctx, raw)
			met.HandlerLatency.WithLabelValues(kind, op).Observe(time.Since(start).Seconds())

			outcome := "ok"
			detail := ""
			if opErr != nil {
				outcome = "error"
				detail = opErr.Error()
			}
			met.HandlerRequestsTotal.WithLabelValues(kind, op, outcome).Inc()
			audit.Record(metrics.AuditEvent{
				Actor:     agentID,
				Action:    kind + "." + op,
				EntryType: kind,
				Result:    outcome,
				Detail:    detail,
			})

			return result, opErr
		}
	}
	return wrapped
}
