package main

import (
	"context"

	"memoryd/internal/breaker"
	"memoryd/internal/embedding"
)

// breakerEngine wraps an embedding.Engine so every call crosses the
// embedding circuit breaker, tripping it open after repeated provider
// failures instead of letting every handler call hang or retry against a
// dead endpoint.
type breakerEngine struct {
	embedding.Engine
	br *breaker.Breaker
}

func withBreaker(engine embedding.Engine, registry *breaker.Registry) embedding.Engine {
	return &breakerEngine{Engine: engine, br: registry.Get("embedding")}
}

func (e *breakerEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := e.br.Call(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = e.Engine.Embed(ctx, text)
		return callErr
	})
	return out, err
}

func (e *breakerEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := e.br.Call(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = e.Engine.EmbedBatch(ctx, texts)
		return callErr
	})
	return out, err
}
