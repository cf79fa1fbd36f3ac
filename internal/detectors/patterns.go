package detectors

import (
	"fmt"
	"regexp"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
)

// Match reports how often one labelled pattern fired.
type Match struct {
	Label    string `json:"label"`
	Category string `json:"category,omitempty"`
	Pattern  string `json:"pattern"`
	Count    int    `json:"count"`
}

type compiledPattern struct {
	label    string
	category string
	source   string
	re       *regexp.Regexp
}

// PatternSet is an ordered list of compiled (label, pattern) pairs.
type PatternSet struct {
	patterns []compiledPattern
}

func NewPatternSet(defs []config.PatternDef) (*PatternSet, error) {
	set := &PatternSet{patterns: make([]compiledPattern, 0, len(defs))}
	for _, d := range defs {
		re, err := regexp.Compile(d.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", d.Label, err)
		}
		set.patterns = append(set.patterns, compiledPattern{
			label:    d.Label,
			category: d.Category,
			source:   d.Pattern,
			re:       re,
		})
	}
	return set, nil
}

func mustPatternSet(defs []config.PatternDef) *PatternSet {
	set, err := NewPatternSet(defs)
	if err != nil {
		panic(err)
	}
	return set
}

// Scan returns one Match per pattern that fired, in declaration order.
func (s *PatternSet) Scan(text string) []Match {
	var matches []Match
	for _, p := range s.patterns {
		n := len(p.re.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		matches = append(matches, Match{
			Label:    p.label,
			Category: p.category,
			Pattern:  p.source,
			Count:    n,
		})
	}
	return matches
}

// Any reports whether at least one pattern matches.
func (s *PatternSet) Any(text string) bool {
	for _, p := range s.patterns {
		if p.re.MatchString(text) {
			return true
		}
	}
	return false
}

func (s *PatternSet) Len() int {
	return len(s.patterns)
}
