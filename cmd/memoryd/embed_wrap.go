package main

import (
	"context"
	"encoding/json"

	"memoryd/internal/embedding"
	"memoryd/internal/handler"
	"memoryd/internal/store"
)

// withEmbedding wraps a kind's add/update handlers so a successful write
// also enqueues the resulting version for background embedding, generic
// over the payload type since handler.Factory.Add/Update return a
// concretely-typed *store.Envelope[P] rather than an interface the wrapper
// could inspect generically. text renders the payload's embeddable content.
func withEmbedding[P any](handlers map[string]handler.Handler, queue *embedding.Queue, kind string, text func(P) string) {
	for _, op := range []string{"add", "update"} {
		inner, ok := handlers[op]
		if !ok {
			continue
		}
		handlers[op] = func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			result, err := inner(ctx, raw)
			if err != nil {
				return result, err
			}
			if env, ok := result.(*store.Envelope[P]); ok {
				queue.Enqueue(embedding.Key{
					EntryType: kind,
					EntryID:   env.ID,
					VersionID: env.CurrentVersionID,
				}, text(env.Payload))
			}
			return result, nil
		}
	}
}

func guidelineEmbedText(p store.GuidelinePayload) string {
	return p.Title + "\n" + p.Body
}

func toolEmbedText(p store.ToolPayload) string {
	return p.Name + "\n" + p.Description
}

func knowledgeEmbedText(p store.KnowledgePayload) string {
	return p.Title + "\n" + p.Content
}

func experienceEmbedText(p store.ExperiencePayload) string {
	return p.Title + "\n" + p.Outcome + "\n" + p.Rationale
}
