package detectors

import (
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
)

// Detectors bundles every classifier built from one patterns file.
type Detectors struct {
	Narration          *NarrationDetector
	Authority          *AuthorityDetector
	Correction         *CorrectionModeDetector
	Grounding          *GroundingPolicy
	PlaceholderDomains []string
}

func New(cfg *config.PatternsConfig) (*Detectors, error) {
	if cfg == nil {
		cfg = config.DefaultPatterns()
	}

	narration, err := NewNarrationDetector(cfg.Narration)
	if err != nil {
		return nil, err
	}
	authority, err := NewAuthorityDetector(cfg.Authority)
	if err != nil {
		return nil, err
	}
	correction, err := NewCorrectionModeDetector(cfg.Correction)
	if err != nil {
		return nil, err
	}
	grounding, err := NewGroundingPolicy(cfg.NoSources)
	if err != nil {
		return nil, err
	}

	return &Detectors{
		Narration:          narration,
		Authority:          authority,
		Correction:         correction,
		Grounding:          grounding,
		PlaceholderDomains: cfg.PlaceholderDomains,
	}, nil
}

func Default() *Detectors {
	d, err := New(config.DefaultPatterns())
	if err != nil {
		panic(err)
	}
	return d
}
