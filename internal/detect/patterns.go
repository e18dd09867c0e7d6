// Package detect decides whether a page element is a purchase-intent control.
package detect

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Pattern is a named keyword rule.
type Pattern struct {
	Name     string
	Regex    string
	Priority int // Higher priority patterns are checked first
}

// CompiledPattern holds a compiled regex pattern with metadata.
type CompiledPattern struct {
	compiledRegex *regexp.Regexp
	Pattern
}

// PatternSet matches text against patterns in priority order.
type PatternSet struct {
	patterns []CompiledPattern
}

// NewPatternSet compiles patterns. Matching is case-insensitive.
func NewPatternSet(patterns []Pattern) (*PatternSet, error) {
	compiled := make([]CompiledPattern, 0, len(patterns))

	for _, p := range patterns {
		regexStr := p.Regex
		if !strings.HasPrefix(regexStr, "(?i)") {
			regexStr = "(?i)" + regexStr
		}

		regex, err := regexp.Compile(regexStr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %s: %w", p.Name, err)
		}

		compiled = append(compiled, CompiledPattern{
			Pattern:       p,
			compiledRegex: regex,
		})
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority > compiled[j].Priority
	})

	return &PatternSet{patterns: compiled}, nil
}

// Match returns the name of the highest priority pattern found in text.
func (ps *PatternSet) Match(text string) (string, bool) {
	for _, p := range ps.patterns {
		if p.compiledRegex.MatchString(text) {
			return p.Name, true
		}
	}
	return "", false
}

// Len returns the number of patterns.
func (ps *PatternSet) Len() int {
	return len(ps.patterns)
}

// IntentPatterns returns the purchase-intent vocabulary. Every rule matches
// on word boundaries so "payload" or "reorder" never count.
func IntentPatterns() []Pattern {
	return []Pattern{
		{Name: "place order", Regex: `\bplace\s+(my\s+|your\s+)?order\b`, Priority: 100},
		{Name: "submit order", Regex: `\bsubmit\s+(my\s+|your\s+)?order\b`, Priority: 100},
		{Name: "add to cart", Regex: `\badd\s+to\s+(cart|bag|basket)\b`, Priority: 90},
		{Name: "checkout", Regex: `\bcheck\s?out\b`, Priority: 90},
		{Name: "buy", Regex: `\bbuy\b`, Priority: 80},
		{Name: "purchase", Regex: `\bpurchase\b`, Priority: 80},
		{Name: "pay", Regex: `\bpay\b`, Priority: 70},
		{Name: "order", Regex: `\border\b`, Priority: 60},
		{Name: "complete", Regex: `\bcomplete\b`, Priority: 50},
		{Name: "proceed", Regex: `\bproceed\b`, Priority: 40},
		{Name: "continue", Regex: `\bcontinue\b`, Priority: 30},
	}
}

// ExclusionPatterns returns the vocabulary that vetoes an intent match.
func ExclusionPatterns() []Pattern {
	return []Pattern{
		{Name: "cancel", Regex: `\bcancel\b`, Priority: 100},
		{Name: "back", Regex: `\bback\b`, Priority: 100},
		{Name: "return", Regex: `\breturns?\b`, Priority: 100},
		{Name: "edit", Regex: `\bedit\b`, Priority: 100},
		{Name: "remove", Regex: `\bremove\b`, Priority: 100},
		{Name: "delete", Regex: `\bdelete\b`, Priority: 100},
		{Name: "continue shopping", Regex: `\b(continue|keep)\s+shopping\b`, Priority: 90},
	}
}

// StrictExclusionPatterns adds version-control and action verbs used by
// code hosting and collaboration tools.
func StrictExclusionPatterns() []Pattern {
	return []Pattern{
		{Name: "merge", Regex: `\bmerge\b`, Priority: 80},
		{Name: "commit", Regex: `\bcommit\b`, Priority: 80},
		{Name: "push", Regex: `\bpush\b`, Priority: 80},
		{Name: "fork", Regex: `\bfork\b`, Priority: 80},
		{Name: "pull request", Regex: `\bpull\s+request\b`, Priority: 80},
	}
}
