package drift

import (
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/detectors"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/history"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

var modeOrder = []models.Mode{models.ModeBaseline, models.ModeGoverned, models.ModeHybrid}

type Scorer struct {
	authority *detectors.AuthorityDetector
}

func NewScorer(authority *detectors.AuthorityDetector) *Scorer {
	if authority == nil {
		authority = detectors.DefaultAuthorityDetector()
	}
	return &Scorer{authority: authority}
}

// Score computes the drift report of current against the runs recorded for
// the same prompt hash, ordered oldest first. current may or may not be
// part of records.
func (s *Scorer) Score(current *models.RunRecord, records []*models.RunRecord) models.DriftReport {
	text := OutputText(current)

	report := models.DriftReport{
		StructureScore:        StructureScore(current.Output),
		InitialStructureScore: InitialStructureScore(current),
		Authority:             s.authority.Scan(text),
	}

	if prior := history.LatestPrior(records, history.KeyOf(current), current.RunID); prior != nil {
		stability := Similarity(text, OutputText(prior))
		report.Stability = &stability
		report.StabilityPriorRun = prior.RunID
	}

	report.ModeDivergence = ModeDivergence(current, records)
	return report
}

// ModeDivergence compares the latest output of every mode that ran for the
// prompt, pairwise in a fixed mode order. It is empty when fewer than two
// modes ran.
func ModeDivergence(current *models.RunRecord, records []*models.RunRecord) []models.ModeDivergence {
	latest := history.LatestByMode(records)
	if current.Status != models.RunFailed {
		latest[current.Mode] = current
	}

	var present []*models.RunRecord
	for _, m := range modeOrder {
		if r, ok := latest[m]; ok {
			present = append(present, r)
		}
	}
	if len(present) < 2 {
		return nil
	}

	var out []models.ModeDivergence
	for i := 0; i < len(present); i++ {
		for j := i + 1; j < len(present); j++ {
			a, b := present[i], present[j]
			out = append(out, models.ModeDivergence{
				ModeA:      a.Mode,
				ModeB:      b.Mode,
				RunA:       a.RunID,
				RunB:       b.RunID,
				Similarity: Similarity(OutputText(a), OutputText(b)),
			})
		}
	}
	return out
}
