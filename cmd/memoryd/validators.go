package main

import (
	"memoryd/internal/store"
	"memoryd/internal/validate"
)

// guidelineValidator enforces the minimum shape a guideline needs before it
// is worth persisting: a title, a body, and bounded lengths so a runaway
// submission doesn't blow out the FTS index.
func guidelineValidator(p store.GuidelinePayload) validate.Errors {
	var errs validate.Errors
	errs = validate.Required(errs, "title", p.Title)
	errs = validate.MaxLength(errs, "title", p.Title, 200)
	errs = validate.Required(errs, "body", p.Body)
	errs = validate.MaxLength(errs, "body", p.Body, 8000)
	return errs
}

func toolValidator(p store.ToolPayload) validate.Errors {
	var errs validate.Errors
	errs = validate.Required(errs, "name", p.Name)
	errs = validate.MaxLength(errs, "name", p.Name, 200)
	errs = validate.Required(errs, "description", p.Description)
	errs = validate.JSONWellFormed(errs, "inputSchema", p.InputSchema)
	return errs
}

func knowledgeValidator(p store.KnowledgePayload) validate.Errors {
	var errs validate.Errors
	errs = validate.Required(errs, "title", p.Title)
	errs = validate.MaxLength(errs, "title", p.Title, 200)
	errs = validate.Required(errs, "content", p.Content)
	errs = validate.MaxLength(errs, "content", p.Content, 16000)
	return errs
}

func experienceValidator(p store.ExperiencePayload) validate.Errors {
	var errs validate.Errors
	errs = validate.Required(errs, "title", p.Title)
	errs = validate.Required(errs, "outcome", p.Outcome)
	errs = validate.MaxLength(errs, "rationale", p.Rationale, 8000)
	return errs
}
