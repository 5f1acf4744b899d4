package validate

import (
	"context"
	"fmt"
)

// GuidelineRule is a custom validation rule authored as a guideline whose
// title starts with "validation:" — e.g. "validation:no-secrets-in-body"
// — and whose red flags are treated as ReDoS-guarded regex patterns the
// target field must not match.
type GuidelineRule struct {
	Name        string
	Field       string
	DenyPattern string
}

// GuidelineSource fetches validation: guidelines for a scope, backed in
// production by store.GuidelineRepo.List filtered by title prefix.
type GuidelineSource interface {
	ListValidationGuidelines(ctx context.Context) ([]GuidelineRule, error)
}

// ApplyGuidelineRules runs every fetched rule against fields, a map of
// field name to its current value, appending to errs for any denied match.
func ApplyGuidelineRules(ctx context.Context, source GuidelineSource, fields map[string]string, errs Errors) (Errors, error) {
	rules, err := source.ListValidationGuidelines(ctx)
	if err != nil {
		return errs, fmt.Errorf("validate: load guideline rules: %w", err)
	}

	for _, rule := range rules {
		value, ok := fields[rule.Field]
		if !ok {
			continue
		}
		re, err := CompileGuarded(rule.DenyPattern)
		if err != nil {
			errs = append(errs, &Error{Field: rule.Field, Rule: "guideline:" + rule.Name, Message: err.Error()})
			continue
		}
		if re.MatchString(value) {
			errs = append(errs, &Error{
				Field:   rule.Field,
				Rule:    "guideline:" + rule.Name,
				Message: fmt.Sprintf("matches denied pattern from guideline %q", rule.Name),
			})
		}
	}
	return errs, nil
}
