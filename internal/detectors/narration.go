package detectors

import (
	"fmt"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
)

// NarrationDetector flags process narration ("thinking", "loading") and
// first-person certainty claims that must never reach a governed output.
type NarrationDetector struct {
	set *PatternSet
}

func NewNarrationDetector(defs []config.PatternDef) (*NarrationDetector, error) {
	set, err := NewPatternSet(defs)
	if err != nil {
		return nil, fmt.Errorf("narration: %w", err)
	}
	return &NarrationDetector{set: set}, nil
}

// DefaultNarrationDetector uses the compiled-in pattern list.
func DefaultNarrationDetector() *NarrationDetector {
	return &NarrationDetector{set: mustPatternSet(config.DefaultPatterns().Narration)}
}

func (d *NarrationDetector) Scan(text string) []Match {
	return d.set.Scan(text)
}
