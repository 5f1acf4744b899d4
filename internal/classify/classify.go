// Package classify assigns a free-text artifact submission to one of the
// four artifact kinds (guideline, tool, knowledge, experience) using an
// ordered set of pattern rules, adjusted by accumulated feedback, with an
// optional external LLM fallback for low-confidence inputs.
package classify

import (
	"context"
	"regexp"
	"strings"
	"time"

	"memoryd/internal/logging"
)

// Kind is one of the four classifiable artifact kinds.
type Kind string

const (
	KindGuideline  Kind = "guideline"
	KindTool       Kind = "tool"
	KindKnowledge  Kind = "knowledge"
	KindExperience Kind = "experience"
)

// Rule is one weighted pattern in the classifier's fixed, ordered rule set.
// Rule order only matters as a tie-break: when two rules with the same
// target produce the same effective score, the rule declared earlier wins
// (max wins, ties broken by declaration order).
type Rule struct {
	PatternID  string
	Target     Kind
	BaseWeight float64
	Match      func(normalized string) bool
}

// Result is the outcome of classifying one input.
type Result struct {
	Kind        Kind
	Confidence  float64
	PatternID   string
	FromCache   bool
	FromFallback bool
}

var defaultRules = []Rule{
	{PatternID: "tool.command-prefix", Target: KindTool, BaseWeight: 0.9, Match: matchAny(`^\s*\x60`, `^\s*/\w+`)},
	{PatternID: "tool.imperative-verb", Target: KindTool, BaseWeight: 0.55, Match: matchAny(`^(run|execute|invoke|call)\s`)},
	{PatternID: "guideline.prescriptive", Target: KindGuideline, BaseWeight: 0.7, Match: matchAny(`^(always|never|must|should|avoid|prefer)\s`)},
	{PatternID: "guideline.decision-language", Target: KindGuideline, BaseWeight: 0.5, Match: matchAny(`\bif\b.*\bthen\b`, `\bwhen\b.*\b(do|ensure)\b`)},
	{PatternID: "experience.past-tense-narrative", Target: KindExperience, BaseWeight: 0.65, Match: matchAny(`\b(tried|attempted|discovered|learned|failed|fixed|debugged)\b`)},
	{PatternID: "experience.outcome-language", Target: KindExperience, BaseWeight: 0.5, Match: matchAny(`\b(root cause|turned out|worked around|resolved by)\b`)},
	{PatternID: "knowledge.factual-statement", Target: KindKnowledge, BaseWeight: 0.45, Match: matchAny(`\bis\b|\bare\b|\bmeans\b|\brefers to\b`)},
}

func matchAny(patterns ...string) func(string) bool {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return func(s string) bool {
		for _, re := range compiled {
			if re.MatchString(s) {
				return true
			}
		}
		return false
	}
}

// FeedbackStore persists per-pattern confidence multipliers, backed by
// internal/store's pattern_confidence table.
type FeedbackStore interface {
	Multiplier(ctx context.Context, patternID string) (float64, error)
	RecordFeedback(ctx context.Context, patternID string, positive bool) error
}

// LLMClassifier is the external collaborator used when no rule clears
// MinConfidence. Its concrete implementation (a vendor SDK call) is out of
// this module's scope; only the interface is specified.
type LLMClassifier interface {
	Classify(ctx context.Context, text string) (Kind, float64, error)
}

// Classifier ties the rule set, feedback store, result cache, and optional
// LLM fallback together.
type Classifier struct {
	rules              []Rule
	feedback           FeedbackStore
	llm                LLMClassifier
	llmEnabled         bool
	minConfidence      float64
	maxBoost           float64
	maxPenalty         float64

	cache *resultCache
}

// Config tunes a Classifier; mirrors config.ClassificationConfig without
// importing internal/config to avoid a dependency cycle.
type Config struct {
	CacheSize          int
	CacheTTL           time.Duration
	MinConfidence      float64
	MaxFeedbackBoost   float64
	MaxFeedbackPenalty float64
	LLMFallbackEnabled bool
}

// New constructs a Classifier with the default rule set.
func New(cfg Config, feedback FeedbackStore, llm LLMClassifier) *Classifier {
	return &Classifier{
		rules:         defaultRules,
		feedback:      feedback,
		llm:           llm,
		llmEnabled:    cfg.LLMFallbackEnabled && llm != nil,
		minConfidence: cfg.MinConfidence,
		maxBoost:      cfg.MaxFeedbackBoost,
		maxPenalty:    cfg.MaxFeedbackPenalty,
		cache:         newResultCache(cfg.CacheSize, cfg.CacheTTL),
	}
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Classify scores text against every rule, applies feedback multipliers,
// takes the max score (ties broken by rule declaration order), and falls
// back to the LLM classifier when the winning score is below MinConfidence.
func (c *Classifier) Classify(ctx context.Context, text string) (Result, error) {
	log := logging.Get(logging.CategoryClassify)

	if cached, ok := c.cache.get(text); ok {
		cached.FromCache = true
		return cached, nil
	}

	normalized := normalize(text)

	var best Result
	bestScore := -1.0
	for _, rule := range c.rules {
		if !rule.Match(normalized) {
			continue
		}
		score := rule.BaseWeight
		if c.feedback != nil {
			if mult, err := c.feedback.Multiplier(ctx, rule.PatternID); err == nil {
				score *= clamp(mult, 1-c.maxPenalty, 1+c.maxBoost)
			}
		}
		if score > bestScore {
			bestScore = score
			best = Result{Kind: rule.Target, Confidence: clamp(score, 0, 1), PatternID: rule.PatternID}
		}
	}

	if bestScore < c.minConfidence && c.llmEnabled {
		kind, confidence, err := c.llm.Classify(ctx, text)
		if err != nil {
			log.Warn("llm fallback failed, keeping rule-based result: %v", err)
		} else {
			best = Result{Kind: kind, Confidence: confidence, FromFallback: true}
		}
	}

	if bestScore < 0 && !best.FromFallback {
		best = Result{Kind: KindKnowledge, Confidence: 0}
	}

	c.cache.set(text, best)
	return best, nil
}

// RecordFeedback adjusts the pattern that produced a classification based on
// whether the user confirmed or rejected it.
func (c *Classifier) RecordFeedback(ctx context.Context, patternID string, positive bool) error {
	if c.feedback == nil || patternID == "" {
		return nil
	}
	return c.feedback.RecordFeedback(ctx, patternID, positive)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
