package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"memoryd/internal/store"
)

// GuidelineMarkdown renders a guideline envelope as Markdown with a YAML
// front-matter block carrying the sentinel, matching the shape a human
// reviewer would check into a docs repo.
func GuidelineMarkdown(env *store.Envelope[store.GuidelinePayload], exportedAt time.Time) ([]byte, error) {
	sentinel := toDocument(env, exportedAt).Sentinel
	front, err := yaml.Marshal(map[string]Sentinel{"_memoryd": sentinel})
	if err != nil {
		return nil, fmt.Errorf("export: marshal front matter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(front)
	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("# %s\n\n", env.Payload.Title))
	sb.WriteString(env.Payload.Body)
	sb.WriteString("\n")
	if len(env.Payload.RedFlags) > 0 {
		sb.WriteString("\n## Red flags\n\n")
		for _, flag := range env.Payload.RedFlags {
			sb.WriteString(fmt.Sprintf("- %s\n", flag))
		}
	}
	return []byte(sb.String()), nil
}

// ParseGuidelineMarkdown recovers the sentinel and payload from a document
// produced by GuidelineMarkdown.
func ParseGuidelineMarkdown(data []byte) (Sentinel, store.GuidelinePayload, error) {
	text := string(data)
	const delim = "---\n"
	if !strings.HasPrefix(text, delim) {
		return Sentinel{}, store.GuidelinePayload{}, fmt.Errorf("export: markdown document missing front matter")
	}
	rest := text[len(delim):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return Sentinel{}, store.GuidelinePayload{}, fmt.Errorf("export: markdown document has unterminated front matter")
	}
	frontMatter := rest[:end]
	body := strings.TrimPrefix(rest[end+len("\n---\n"):], "\n")

	var wrapped map[string]Sentinel
	if err := yaml.Unmarshal([]byte(frontMatter), &wrapped); err != nil {
		return Sentinel{}, store.GuidelinePayload{}, fmt.Errorf("export: decode front matter: %w", err)
	}

	title := ""
	if lines := strings.SplitN(body, "\n", 2); len(lines) > 0 {
		title = strings.TrimSpace(strings.TrimPrefix(lines[0], "# "))
		if len(lines) > 1 {
			body = strings.TrimSpace(lines[1])
		} else {
			body = ""
		}
	}

	return wrapped["_memoryd"], store.GuidelinePayload{Title: title, Body: body}, nil
}
