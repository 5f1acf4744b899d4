package validate

import (
	"context"
	"testing"
)

func TestRequiredFlagsEmptyValue(t *testing.T) {
	var errs Errors
	errs = Required(errs, "title", "")
	if len(errs) != 1 || errs[0].Rule != "required" {
		t.Fatalf("errs = %+v, want one required error", errs)
	}
}

func TestMaxLengthFlagsOverLength(t *testing.T) {
	var errs Errors
	errs = MaxLength(errs, "body", "abcdef", 3)
	if len(errs) != 1 || errs[0].Rule != "max_length" {
		t.Fatalf("errs = %+v, want one max_length error", errs)
	}
}

func TestDateRangeAcceptsValidRFC3339(t *testing.T) {
	var errs Errors
	errs = DateRange(errs, "createdAt", "2026-01-15T10:00:00Z")
	if len(errs) != 0 {
		t.Fatalf("errs = %+v, want none for a valid RFC3339 date", errs)
	}
}

func TestDateRangeRejectsOutOfRangeYear(t *testing.T) {
	var errs Errors
	errs = DateRange(errs, "createdAt", "1899-01-15T10:00:00Z")
	if len(errs) != 1 || errs[0].Rule != "date_range" {
		t.Fatalf("errs = %+v, want one date_range error for year 1899", errs)
	}
}

func TestDateRangeRejectsMalformedDate(t *testing.T) {
	var errs Errors
	errs = DateRange(errs, "createdAt", "not-a-date")
	if len(errs) != 1 || errs[0].Rule != "date_format" {
		t.Fatalf("errs = %+v, want one date_format error", errs)
	}
}

func TestJSONWellFormedRejectsInvalidJSON(t *testing.T) {
	var errs Errors
	errs = JSONWellFormed(errs, "inputSchema", "{not json")
	if len(errs) != 1 || errs[0].Rule != "json" {
		t.Fatalf("errs = %+v, want one json error", errs)
	}
}

type fakeGuidelineSource struct {
	rules []GuidelineRule
}

func (f *fakeGuidelineSource) ListValidationGuidelines(ctx context.Context) ([]GuidelineRule, error) {
	return f.rules, nil
}

func TestApplyGuidelineRulesFlagsDeniedPattern(t *testing.T) {
	source := &fakeGuidelineSource{rules: []GuidelineRule{
		{Name: "no-secrets-in-body", Field: "body", DenyPattern: `AKIA[0-9A-Z]{16}`},
	}}

	errs, err := ApplyGuidelineRules(context.Background(), source, map[string]string{
		"body": "here is a key AKIA1234567890ABCDEF",
	}, nil)
	if err != nil {
		t.Fatalf("ApplyGuidelineRules() error = %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("errs = %+v, want one denied-pattern error", errs)
	}
}

func TestApplyGuidelineRulesIgnoresUnrelatedFields(t *testing.T) {
	source := &fakeGuidelineSource{rules: []GuidelineRule{
		{Name: "no-secrets-in-body", Field: "body", DenyPattern: `AKIA[0-9A-Z]{16}`},
	}}

	errs, err := ApplyGuidelineRules(context.Background(), source, map[string]string{
		"title": "irrelevant",
	}, nil)
	if err != nil {
		t.Fatalf("ApplyGuidelineRules() error = %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("errs = %+v, want none when the rule's field is absent", errs)
	}
}
