package detectors

import (
	"fmt"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

// AuthorityDetector flags claimed authority the model does not have:
// overriding instructions, tool use that never happened, absolute certainty.
type AuthorityDetector struct {
	set *PatternSet
}

func NewAuthorityDetector(defs []config.PatternDef) (*AuthorityDetector, error) {
	set, err := NewPatternSet(defs)
	if err != nil {
		return nil, fmt.Errorf("authority: %w", err)
	}
	return &AuthorityDetector{set: set}, nil
}

func DefaultAuthorityDetector() *AuthorityDetector {
	return &AuthorityDetector{set: mustPatternSet(config.DefaultPatterns().Authority)}
}

func (d *AuthorityDetector) Scan(text string) models.AuthorityDrift {
	matches := d.set.Scan(text)

	drift := models.AuthorityDrift{Flags: make([]models.AuthorityFlag, 0, len(matches))}
	for _, m := range matches {
		drift.Flags = append(drift.Flags, models.AuthorityFlag{
			Label:    m.Label,
			Category: m.Category,
			Count:    m.Count,
		})
		drift.Total += m.Count
	}
	drift.Severity = AuthoritySeverity(drift.Total)
	return drift
}

// AuthoritySeverity buckets the total flag count: 0-1 low, 2-3 medium,
// 4 or more high.
func AuthoritySeverity(total int) models.Severity {
	switch {
	case total >= 4:
		return models.SeverityHigh
	case total >= 2:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
