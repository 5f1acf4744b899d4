// Package export serializes artifact envelopes to and from JSON, YAML,
// Markdown-with-front-matter, and (for tools) an OpenAPI tool-schema view,
// and runs the periodic archival sweep over stale envelopes.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"memoryd/internal/store"
)

// Sentinel is attached to every exported artifact so a later import can
// decide create-vs-update instead of blindly inserting a duplicate.
type Sentinel struct {
	ID         string    `json:"id" yaml:"id"`
	Version    int       `json:"version" yaml:"version"`
	ScopeType  string    `json:"scopeType" yaml:"scopeType"`
	ScopeID    string    `json:"scopeId,omitempty" yaml:"scopeId,omitempty"`
	ExportedAt time.Time `json:"exportedAt" yaml:"exportedAt"`
}

// Document is the export-import wire shape for one artifact envelope.
type Document[P any] struct {
	Sentinel Sentinel `json:"_memoryd" yaml:"_memoryd"`
	Payload  P        `json:"payload" yaml:"payload"`
}

func toDocument[P any](env *store.Envelope[P], exportedAt time.Time) Document[P] {
	return Document[P]{
		Sentinel: Sentinel{
			ID:         env.ID,
			Version:    env.Version,
			ScopeType:  string(env.Scope.Type),
			ScopeID:    env.Scope.ID,
			ExportedAt: exportedAt,
		},
		Payload: env.Payload,
	}
}

// ToJSON renders an envelope as the canonical export format.
func ToJSON[P any](env *store.Envelope[P], exportedAt time.Time) ([]byte, error) {
	return json.MarshalIndent(toDocument(env, exportedAt), "", "  ")
}

// FromJSON parses a JSON document produced by ToJSON.
func FromJSON[P any](data []byte) (Document[P], error) {
	var doc Document[P]
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("export: decode json document: %w", err)
	}
	return doc, nil
}

// ToYAML renders an envelope as YAML.
func ToYAML[P any](env *store.Envelope[P], exportedAt time.Time) ([]byte, error) {
	return yaml.Marshal(toDocument(env, exportedAt))
}

// FromYAML parses a YAML document produced by ToYAML.
func FromYAML[P any](data []byte) (Document[P], error) {
	var doc Document[P]
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("export: decode yaml document: %w", err)
	}
	return doc, nil
}

// ImportDecision tells a caller whether a parsed document should create a
// new envelope or update an existing one, based on whether its sentinel ID
// already exists.
type ImportDecision int

const (
	// ImportCreate means no existing envelope has the sentinel's ID.
	ImportCreate ImportDecision = iota
	// ImportUpdate means an envelope with that ID already exists.
	ImportUpdate
)

// ExistenceChecker reports whether an entry ID is already known, used to
// classify an incoming Document as a create or an update.
type ExistenceChecker interface {
	Exists(ctx context.Context, entryID string) (bool, error)
}

// Classify resolves the import decision for sentinel against checker.
func Classify(ctx context.Context, checker ExistenceChecker, sentinel Sentinel) (ImportDecision, error) {
	exists, err := checker.Exists(ctx, sentinel.ID)
	if err != nil {
		return ImportCreate, fmt.Errorf("export: check existence of %q: %w", sentinel.ID, err)
	}
	if exists {
		return ImportUpdate, nil
	}
	return ImportCreate, nil
}
