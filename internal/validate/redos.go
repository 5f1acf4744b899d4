package validate

import (
	"fmt"
	"regexp"
)

// redosGuard matches pattern shapes that are expensive to evaluate even
// under Go's RE2 engine (no backtracking, but still vulnerable to cubic
// blowups and astronomically large bounded-repetition expansions): nested
// quantifiers, adjacent quantifiers, overlapping alternation, excessive
// repetition bounds, stacked greedy wildcards, and word-boundary+greedy
// combinations that tend to appear in hand-written catastrophic patterns.
var redosGuard = []*regexp.Regexp{
	regexp.MustCompile(`\([^)]*[+*][^)]*\)[+*]`),          // nested quantifier: (a+)+
	regexp.MustCompile(`[+*]{2,}`),                          // adjacent quantifiers: a++ a**
	regexp.MustCompile(`\([^|)]*\|[^|)]*\)[+*]`),            // overlapping alternation repeated: (a|a)*
	regexp.MustCompile(`\{\d{4,}(,\d*)?\}`),                 // excessive repetition bound: a{10000}
	regexp.MustCompile(`\.[*+]\s*\.[*+]`),                   // stacked greedy wildcards: .*.*
	regexp.MustCompile(`\\b.*\.[*+].*\\b`),                  // word-boundary + greedy middle
}

// ErrDangerousPattern is returned when a pattern matches a known
// pathological shape and is rejected before ever reaching regexp.Compile.
type ErrDangerousPattern struct {
	Pattern string
	Reason  string
}

func (e *ErrDangerousPattern) Error() string {
	return fmt.Sprintf("validate: pattern %q rejected: %s", e.Pattern, e.Reason)
}

var redosReasons = []string{
	"nested quantifier",
	"adjacent quantifiers",
	"overlapping alternation repeated",
	"excessive repetition bound",
	"stacked greedy wildcards",
	"word-boundary with greedy middle",
}

// CompileGuarded statically screens pattern against known-dangerous shapes
// before calling regexp.Compile. Go's RE2-based regexp does not suffer
// PCRE-style exponential backtracking, but cubic-time and huge
// bounded-repetition expansions are still worth rejecting defensively.
func CompileGuarded(pattern string) (*regexp.Regexp, error) {
	for i, guard := range redosGuard {
		if guard.MatchString(pattern) {
			return nil, &ErrDangerousPattern{Pattern: pattern, Reason: redosReasons[i]}
		}
	}
	return regexp.Compile(pattern)
}
