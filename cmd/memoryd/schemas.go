package main

import "encoding/json"

// scopeSchema is embedded in every kind's action schema; it mirrors
// handler.ScopeParam.
const scopeSchema = `{
	"type": "object",
	"properties": {
		"scopeType": {"type": "string", "enum": ["global", "project", "agent", "session"]},
		"scopeId": {"type": "string"}
	},
	"required": ["scopeType"]
}`

func actionSchema(payloadSchema string) json.RawMessage {
	return json.RawMessage(`{
	"type": "object",
	"properties": {
		"action": {
			"type": "string",
			"enum": ["add", "update", "get", "list", "history", "deactivate", "delete", "bulk_add", "bulk_update", "bulk_delete"]
		},
		"agentId": {"type": "string"},
		"params": {
			"type": "object",
			"properties": {
				"scope": ` + scopeSchema + `,
				"entryId": {"type": "string"},
				"payload": ` + payloadSchema + `,
				"createdBy": {"type": "string"},
				"updatedBy": {"type": "string"},
				"limit": {"type": "integer"},
				"offset": {"type": "integer"},
				"active": {"type": "boolean"},
				"items": {"type": "array", "items": {"type": "object"}}
			}
		}
	},
	"required": ["action"]
}`)
}

const guidelinePayloadSchema = `{
	"type": "object",
	"properties": {
		"Title": {"type": "string"},
		"Body": {"type": "string"},
		"RedFlags": {"type": "array", "items": {"type": "string"}}
	}
}`

const toolPayloadSchema = `{
	"type": "object",
	"properties": {
		"Name": {"type": "string"},
		"Description": {"type": "string"},
		"InputSchema": {"type": "string"}
	}
}`

const knowledgePayloadSchema = `{
	"type": "object",
	"properties": {
		"Title": {"type": "string"},
		"Content": {"type": "string"},
		"Source": {"type": "string"}
	}
}`

const experiencePayloadSchema = `{
	"type": "object",
	"properties": {
		"Title": {"type": "string"},
		"Trajectory": {"type": "array", "items": {"type": "object"}},
		"Outcome": {"type": "string"},
		"Confidence": {"type": "number"},
		"Rationale": {"type": "string"}
	}
}`
