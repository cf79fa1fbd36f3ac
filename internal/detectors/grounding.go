package detectors

import (
	"fmt"
	"strings"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
)

// GroundingDecision is the resolved grounding posture of one run.
type GroundingDecision struct {
	Requested     bool   `json:"requested"`
	Grounded      bool   `json:"grounded"`
	ForbidSources bool   `json:"forbid_sources"`
	Reason        string `json:"reason"`
}

type GroundingPolicy struct {
	noSources *PatternSet
}

func NewGroundingPolicy(defs []config.PatternDef) (*GroundingPolicy, error) {
	set, err := NewPatternSet(defs)
	if err != nil {
		return nil, fmt.Errorf("grounding: %w", err)
	}
	return &GroundingPolicy{noSources: set}, nil
}

func DefaultGroundingPolicy() *GroundingPolicy {
	return &GroundingPolicy{noSources: mustPatternSet(config.DefaultPatterns().NoSources)}
}

// Resolve combines the caller's grounding flag with the prompt. A prompt
// that forbids sources wins over the flag.
func (p *GroundingPolicy) Resolve(prompt string, requested bool) GroundingDecision {
	if p.noSources.Any(prompt) {
		return GroundingDecision{
			Requested:     requested,
			Grounded:      false,
			ForbidSources: true,
			Reason:        "prompt forbids external sources",
		}
	}
	if requested {
		return GroundingDecision{Requested: true, Grounded: true, Reason: "grounding requested"}
	}
	return GroundingDecision{Reason: "grounding not requested"}
}

// Instructions renders the grounding block of the system prompt.
func (d GroundingDecision) Instructions(noneNote, listedNote string) string {
	var b strings.Builder
	switch {
	case d.ForbidSources:
		b.WriteString("The user asked for an answer without external sources. ")
		fmt.Fprintf(&b, "Set sources.used to false, leave sources.items empty and set sources.note to exactly %q.", noneNote)
	case d.Grounded:
		b.WriteString("You may consult external sources. ")
		fmt.Fprintf(&b, "If you use any, set sources.used to true, list every one in sources.items with a title and a full http(s) url, and set sources.note to exactly %q. ", listedNote)
		fmt.Fprintf(&b, "If you use none, set sources.used to false and sources.note to exactly %q. ", noneNote)
		b.WriteString("Never cite a url that is not listed in sources.items.")
	default:
		b.WriteString("Do not consult or invent external sources. ")
		fmt.Fprintf(&b, "Set sources.used to false, leave sources.items empty and set sources.note to exactly %q.", noneNote)
	}
	return b.String()
}
