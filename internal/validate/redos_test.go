package validate

import "testing"

func TestCompileGuardedRejectsNestedQuantifier(t *testing.T) {
	if _, err := CompileGuarded(`(a+)+`); err == nil {
		t.Fatalf("expected nested quantifier pattern to be rejected")
	}
}

func TestCompileGuardedRejectsAdjacentQuantifiers(t *testing.T) {
	if _, err := CompileGuarded(`a++`); err == nil {
		t.Fatalf("expected adjacent quantifiers to be rejected")
	}
}

func TestCompileGuardedRejectsOverlappingAlternation(t *testing.T) {
	if _, err := CompileGuarded(`(a|a)*`); err == nil {
		t.Fatalf("expected overlapping alternation to be rejected")
	}
}

func TestCompileGuardedRejectsExcessiveRepetitionBound(t *testing.T) {
	if _, err := CompileGuarded(`a{10000}`); err == nil {
		t.Fatalf("expected an excessive repetition bound to be rejected")
	}
}

func TestCompileGuardedRejectsStackedWildcards(t *testing.T) {
	if _, err := CompileGuarded(`.*.*`); err == nil {
		t.Fatalf("expected stacked greedy wildcards to be rejected")
	}
}

func TestCompileGuardedAllowsOrdinaryPatterns(t *testing.T) {
	re, err := CompileGuarded(`^[a-z]+-[0-9]{1,4}$`)
	if err != nil {
		t.Fatalf("CompileGuarded() error = %v for an ordinary pattern", err)
	}
	if !re.MatchString("abc-123") {
		t.Fatalf("expected compiled pattern to match a valid input")
	}
}
