// Package validate implements field-level checks for artifact payloads:
// required fields, max-length bounds, date ranges, JSON well-formedness,
// plus guideline-driven custom rules and a static guard against
// pathologically expensive user-supplied regular expressions.
package validate

import (
	"encoding/json"
	"fmt"
	"time"
)

// Error is one field-level validation failure.
type Error struct {
	Field   string
	Rule    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Rule)
}

// Errors aggregates every Error found by a single Validate call.
type Errors []*Error

func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msg := e[0].Error()
	if len(e) > 1 {
		msg += fmt.Sprintf(" (and %d more)", len(e)-1)
	}
	return msg
}

// Required checks that value is non-empty, appending an Error to errs if
// not, and returns the (possibly extended) slice for call chaining.
func Required(errs Errors, field, value string) Errors {
	if value == "" {
		errs = append(errs, &Error{Field: field, Rule: "required", Message: "must not be empty"})
	}
	return errs
}

// MaxLength checks that value does not exceed max runes.
func MaxLength(errs Errors, field, value string, max int) Errors {
	if len([]rune(value)) > max {
		errs = append(errs, &Error{Field: field, Rule: "max_length", Message: fmt.Sprintf("exceeds maximum length of %d", max)})
	}
	return errs
}

// minYear/maxYear bound the accepted range for RFC3339 date validation;
// outside this range a date is almost certainly a parsing or data-entry
// mistake rather than a legitimate historical or far-future timestamp.
const (
	minYear = 1970
	maxYear = 2100
)

// DateRange parses value as RFC3339 and rejects years outside [1970,2100].
func DateRange(errs Errors, field, value string) Errors {
	if value == "" {
		return errs
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return append(errs, &Error{Field: field, Rule: "date_format", Message: "must be RFC3339"})
	}
	if t.Year() < minYear || t.Year() > maxYear {
		errs = append(errs, &Error{Field: field, Rule: "date_range", Message: fmt.Sprintf("year must be within [%d,%d]", minYear, maxYear)})
	}
	return errs
}

// JSONWellFormed checks that value parses as JSON when non-empty (used for
// tool input schemas and similar free-form JSON fields).
func JSONWellFormed(errs Errors, field, value string) Errors {
	if value == "" {
		return errs
	}
	var v interface{}
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		errs = append(errs, &Error{Field: field, Rule: "json", Message: "must be valid JSON"})
	}
	return errs
}
