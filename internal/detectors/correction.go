package detectors

import (
	"fmt"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
)

// CorrectionModeDetector recognises prompts that push back on a previous
// answer. Correction runs must explain what changed in diff_note.
type CorrectionModeDetector struct {
	set *PatternSet
}

func NewCorrectionModeDetector(defs []config.PatternDef) (*CorrectionModeDetector, error) {
	set, err := NewPatternSet(defs)
	if err != nil {
		return nil, fmt.Errorf("correction: %w", err)
	}
	return &CorrectionModeDetector{set: set}, nil
}

func DefaultCorrectionModeDetector() *CorrectionModeDetector {
	return &CorrectionModeDetector{set: mustPatternSet(config.DefaultPatterns().Correction)}
}

// Detect returns the explicit override when present, otherwise whether any
// correction phrase appears in the prompt.
func (d *CorrectionModeDetector) Detect(prompt string, override *bool) bool {
	if override != nil {
		return *override
	}
	return d.set.Any(prompt)
}
