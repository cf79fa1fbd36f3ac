package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

const defaultPatternsPath = "configs/patterns.yaml"

// PatternDef is one labelled regular expression. Order inside a list is
// significant: detectors report matches in declaration order.
type PatternDef struct {
	Label    string `yaml:"label" json:"label"`
	Pattern  string `yaml:"pattern" json:"pattern"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
}

type PatternsConfig struct {
	Narration          []PatternDef `yaml:"narration"`
	Authority          []PatternDef `yaml:"authority"`
	Correction         []PatternDef `yaml:"correction"`
	NoSources          []PatternDef `yaml:"no_sources"`
	PlaceholderDomains []string     `yaml:"placeholder_domains"`
}

func DefaultPatterns() *PatternsConfig {
	return &PatternsConfig{
		Narration: []PatternDef{
			{Label: "thinking", Pattern: `(?i)\bthinking\b`},
			{Label: "loading", Pattern: `(?i)\bloading\b`},
			{Label: "processing", Pattern: `(?i)\bprocessing\b`},
			{Label: "please_wait", Pattern: `(?i)\bplease wait\b`},
			{Label: "let_me", Pattern: `(?i)\blet me (?:think|check|look|see)\b`},
			{Label: "as_an_ai", Pattern: `(?i)\bas an ai\b`},
			{Label: "first_person_certainty", Pattern: `(?i)\bi(?: am|'m) (?:absolutely |completely |totally )?(?:certain|sure|positive)\b`},
		},
		Authority: []PatternDef{
			{Label: "ignored_instructions", Category: "override_authority", Pattern: `(?i)\bignor(?:e|ed|ing) (?:the |your |all |previous )*(?:rules|instructions|constraints|guidelines)\b`},
			{Label: "bypassed_policy", Category: "override_authority", Pattern: `(?i)\b(?:overrid(?:e|den|ing)|bypass(?:ed|ing)?) (?:the )?(?:policy|contract|governance|safeguards?)\b`},
			{Label: "not_bound", Category: "override_authority", Pattern: `(?i)\bi am not bound by\b`},
			{Label: "claimed_search", Category: "false_tool_use", Pattern: `(?i)\bi (?:have )?(?:searched|browsed|googled|looked up|checked) (?:the )?(?:web|internet|online)\b`},
			{Label: "claimed_execution", Category: "false_tool_use", Pattern: `(?i)\bi (?:have )?(?:ran|run|executed|tested) (?:the |this |your )?(?:code|query|script|command)\b`},
			{Label: "claimed_access", Category: "false_tool_use", Pattern: `(?i)\bi (?:have )?accessed\b`},
			{Label: "hundred_percent", Category: "absolute_certainty", Pattern: `(?i)100% (?:certain|sure|accurate|guaranteed)\b`},
			{Label: "guaranteed", Category: "absolute_certainty", Pattern: `(?i)\bguaranteed\b`},
			{Label: "beyond_doubt", Category: "absolute_certainty", Pattern: `(?i)\b(?:without|beyond) (?:any )?doubt\b`},
			{Label: "definitely", Category: "absolute_certainty", Pattern: `(?i)\bdefinitely (?:true|correct|the case)\b`},
		},
		Correction: []PatternDef{
			{Label: "thats_wrong", Pattern: `(?i)\bthat(?:'s| is) (?:wrong|incorrect|not right)\b`},
			{Label: "you_were_wrong", Pattern: `(?i)\byou (?:were|are) (?:wrong|mistaken|incorrect)\b`},
			{Label: "correct_previous", Pattern: `(?i)\bcorrect (?:your|that|this|the previous)\b`},
			{Label: "fix_previous", Pattern: `(?i)\bfix (?:your|the) (?:previous|last|earlier) (?:answer|response)\b`},
			{Label: "not_what_i_asked", Pattern: `(?i)\bnot what i asked\b`},
			{Label: "incorrect", Pattern: `(?i)\bincorrect\b`},
		},
		NoSources: []PatternDef{
			{Label: "no_sources", Pattern: `(?i)\b(?:no|without|don't use|do not use) (?:external )?(?:sources|citations|references|links)\b`},
			{Label: "from_memory", Pattern: `(?i)\b(?:offline only|from memory)\b`},
		},
		PlaceholderDomains: []string{
			"example.com", "example.org", "example.net", "localhost",
			"test.com", "domain.com", "yourdomain.com", "website.com",
			"placeholder.com", "foo.com", "bar.com",
		},
	}
}

// LoadPatterns reads PATTERNS_CONFIG_PATH (default configs/patterns.yaml).
// A missing file yields the compiled-in defaults; empty lists in the file
// fall back to their defaults.
func LoadPatterns() (*PatternsConfig, error) {
	path := os.Getenv("PATTERNS_CONFIG_PATH")
	if path == "" {
		path = defaultPatternsPath
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultPatterns(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return ParsePatterns(data)
}

func ParsePatterns(data []byte) (*PatternsConfig, error) {
	var cfg PatternsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyPatternDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyPatternDefaults(cfg *PatternsConfig) {
	d := DefaultPatterns()
	if len(cfg.Narration) == 0 {
		cfg.Narration = d.Narration
	}
	if len(cfg.Authority) == 0 {
		cfg.Authority = d.Authority
	}
	if len(cfg.Correction) == 0 {
		cfg.Correction = d.Correction
	}
	if len(cfg.NoSources) == 0 {
		cfg.NoSources = d.NoSources
	}
	if len(cfg.PlaceholderDomains) == 0 {
		cfg.PlaceholderDomains = d.PlaceholderDomains
	}
}

func (c *PatternsConfig) Validate() error {
	lists := []struct {
		name string
		defs []PatternDef
	}{
		{"narration", c.Narration},
		{"authority", c.Authority},
		{"correction", c.Correction},
		{"no_sources", c.NoSources},
	}
	for _, l := range lists {
		if err := validatePatternList(l.name, l.defs); err != nil {
			return err
		}
	}
	for _, a := range c.Authority {
		if a.Category == "" {
			return fmt.Errorf("authority pattern %s: missing category", a.Label)
		}
	}
	return nil
}

func validatePatternList(name string, defs []PatternDef) error {
	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		if d.Label == "" {
			return fmt.Errorf("%s pattern %d: missing label", name, i)
		}
		if seen[d.Label] {
			return fmt.Errorf("%s: duplicate pattern label %s", name, d.Label)
		}
		seen[d.Label] = true
		if _, err := regexp.Compile(d.Pattern); err != nil {
			return fmt.Errorf("%s pattern %s: invalid expression: %w", name, d.Label, err)
		}
	}
	return nil
}
