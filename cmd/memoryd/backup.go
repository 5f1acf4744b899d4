package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"memoryd/internal/export"
	"memoryd/internal/handler"
	"memoryd/internal/store"
)

type backupParams struct {
	Kind     string          `json:"kind"`
	EntryID  string          `json:"entryId"`
	Format   string          `json:"format"`
	Document json.RawMessage `json:"document"`
}

// exportEnvelope renders one repo's envelope through export.ToJSON/ToYAML,
// generic over the payload type so the same body serves every kind.
func exportEnvelope[P any](ctx context.Context, repo handler.Repo[P], entryID, format string) (interface{}, error) {
	env, err := repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("memoryd: export %s: %w", entryID, err)
	}
	now := time.Now().UTC()
	if format == "yaml" {
		data, err := export.ToYAML(env, now)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
	data, err := export.ToJSON(env, now)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// importEnvelope decodes an export.Document and classifies it as a create
// or an update against checker before writing it through repo.
func importEnvelope[P any](ctx context.Context, repo handler.Repo[P], checker export.ExistenceChecker, raw json.RawMessage, format, createdBy string) (interface{}, error) {
	var doc export.Document[P]
	var err error
	if format == "yaml" {
		doc, err = export.FromYAML[P](raw)
	} else {
		doc, err = export.FromJSON[P](raw)
	}
	if err != nil {
		return nil, err
	}

	decision, err := export.Classify(ctx, checker, doc.Sentinel)
	if err != nil {
		return nil, err
	}
	scope := store.Scope{Type: store.ScopeType(doc.Sentinel.ScopeType), ID: doc.Sentinel.ScopeID}
	if decision == export.ImportCreate {
		return repo.Create(ctx, scope, doc.Payload, createdBy)
	}
	return repo.Update(ctx, doc.Sentinel.ID, doc.Payload, createdBy)
}

// backupRepos bundles the four kind repositories plus the archiver's
// existence checker factory, the collaborators the memory_backup tool
// dispatches export/import across by kind.
type backupRepos struct {
	guideline  *store.GuidelineRepo
	tool       *store.ToolRepo
	knowledge  *store.KnowledgeRepo
	experience *store.ExperienceRepo
	checkerFor func(kind string) export.ExistenceChecker
}

// backupHandlers builds the memory_backup tool's export/import actions,
// dispatching to the right generic instantiation by the "kind" param since
// Go generics can't switch on a runtime string themselves.
func backupHandlers(repos backupRepos) map[string]handler.Handler {
	return map[string]handler.Handler{
		"export": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p backupParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("memoryd: decode backup export params: %w", err)
			}
			switch p.Kind {
			case "guideline":
				return exportEnvelope(ctx, repos.guideline, p.EntryID, p.Format)
			case "tool":
				return exportEnvelope(ctx, repos.tool, p.EntryID, p.Format)
			case "knowledge":
				return exportEnvelope(ctx, repos.knowledge, p.EntryID, p.Format)
			case "experience":
				return exportEnvelope(ctx, repos.experience, p.EntryID, p.Format)
			default:
				return nil, fmt.Errorf("memoryd: backup export: unknown kind %q", p.Kind)
			}
		},
		"import": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p backupParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("memoryd: decode backup import params: %w", err)
			}
			checker := repos.checkerFor(p.Kind)
			switch p.Kind {
			case "guideline":
				return importEnvelope(ctx, repos.guideline, checker, p.Document, p.Format, "backup-import")
			case "tool":
				return importEnvelope(ctx, repos.tool, checker, p.Document, p.Format, "backup-import")
			case "knowledge":
				return importEnvelope(ctx, repos.knowledge, checker, p.Document, p.Format, "backup-import")
			case "experience":
				return importEnvelope(ctx, repos.experience, checker, p.Document, p.Format, "backup-import")
			default:
				return nil, fmt.Errorf("memoryd: backup import: unknown kind %q", p.Kind)
			}
		},
	}
}

const backupSchema = `{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ["export", "import"]},
    "agentId": {"type": "string"},
    "params": {
      "type": "object",
      "properties": {
        "kind": {"type": "string", "enum": ["guideline", "tool", "knowledge", "experience"]},
        "entryId": {"type": "string"},
        "format": {"type": "string", "enum": ["json", "yaml"]},
        "document": {}
      }
    }
  },
  "required": ["action", "params"]
}`
