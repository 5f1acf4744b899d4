package export

import (
	"encoding/json"
	"fmt"

	"memoryd/internal/store"
)

// OpenAPIOperation is the minimal operation shape produced for a tool's
// input schema, exported so tool artifacts can be pasted directly into a
// spec written by hand.
type OpenAPIOperation struct {
	OperationID string          `json:"operationId"`
	Summary     string          `json:"summary,omitempty"`
	RequestBody json.RawMessage `json:"requestBody"`
}

// OpenAPIDocument wraps a set of tool operations under an "x-tools" paths
// extension, since tool calls aren't HTTP routes.
type OpenAPIDocument struct {
	OpenAPI string                      `json:"openapi"`
	Info    OpenAPIInfo                 `json:"info"`
	XTools  map[string]OpenAPIOperation `json:"x-tools"`
}

// OpenAPIInfo is the required top-level metadata block.
type OpenAPIInfo struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

// ToolsToOpenAPI renders a set of tool envelopes as one OpenAPI-shaped
// document, one x-tools entry per tool name.
func ToolsToOpenAPI(tools []*store.Envelope[store.ToolPayload], title, version string) (OpenAPIDocument, error) {
	doc := OpenAPIDocument{
		OpenAPI: "3.1.0",
		Info:    OpenAPIInfo{Title: title, Version: version},
		XTools:  make(map[string]OpenAPIOperation, len(tools)),
	}
	for _, tool := range tools {
		schema := tool.Payload.InputSchema
		if schema == "" {
			schema = "{}"
		}
		if !json.Valid([]byte(schema)) {
			return OpenAPIDocument{}, fmt.Errorf("export: tool %q has invalid input schema JSON", tool.Payload.Name)
		}
		doc.XTools[tool.Payload.Name] = OpenAPIOperation{
			OperationID: tool.Payload.Name,
			Summary:     tool.Payload.Description,
			RequestBody: json.RawMessage(schema),
		}
	}
	return doc, nil
}
