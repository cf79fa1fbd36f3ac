package drift

import (
	"encoding/json"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/contract"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/repair"
)

type structureCheck struct {
	weight int
	ok     func(o *models.GovernedOutput) bool
}

var structureChecks = []structureCheck{
	{25, func(o *models.GovernedOutput) bool { return nonEmpty(o.CanonicalAnswer) }},
	{20, func(o *models.GovernedOutput) bool {
		p := o.ThreePerspectives
		return nonEmpty(p.Optimizer) && nonEmpty(p.Skeptic) && nonEmpty(p.Operator)
	}},
	{15, func(o *models.GovernedOutput) bool { return nonEmpty(o.NextSteps) }},
	{10, func(o *models.GovernedOutput) bool { return len(o.UnknownsAndChecks) > 0 }},
	{15, func(o *models.GovernedOutput) bool { return sourcesConsistent(o.Sources) }},
	{10, func(o *models.GovernedOutput) bool {
		switch o.Risk.Level {
		case models.RiskLow, models.RiskMedium, models.RiskHigh:
			return true
		}
		return false
	}},
	{5, func(o *models.GovernedOutput) bool { return len(o.DiffNote) > 0 }},
}

// StructureScore is a weighted 0-100 checklist over the contract fields.
// Runs without structured output score 0.
func StructureScore(o *models.GovernedOutput) int {
	if o == nil {
		return 0
	}
	score := 0
	for _, c := range structureChecks {
		if c.ok(o) {
			score += c.weight
		}
	}
	return score
}

// RawStructureScore scores raw model text after local repair only. Fields
// of the wrong type are left zero and lose their weight; text that is not
// a JSON object scores 0.
func RawStructureScore(raw string) int {
	res := repair.AttemptLocalRepair(raw)
	if _, ok := res.Parsed.(map[string]any); !ok {
		return 0
	}
	var out models.GovernedOutput
	// Type errors are expected here; the decoder keeps filling the rest.
	_ = json.Unmarshal([]byte(res.RepairedText), &out)
	return StructureScore(&out)
}

// InitialStructureScore scores the first attempt of r.
func InitialStructureScore(r *models.RunRecord) int {
	if r == nil || len(r.Attempts) == 0 {
		return 0
	}
	return RawStructureScore(r.Attempts[0].RawText)
}

func nonEmpty(items []string) bool {
	if len(items) == 0 {
		return false
	}
	for _, s := range items {
		if s == "" {
			return false
		}
	}
	return true
}

func sourcesConsistent(s models.Sources) bool {
	if !s.Used {
		return len(s.Items) == 0 && s.Note == contract.NoteNoSources
	}
	if len(s.Items) == 0 || s.Note != contract.NoteListedSources {
		return false
	}
	for _, it := range s.Items {
		if it.Title == "" || !contract.IsHTTPURL(it.URL) {
			return false
		}
	}
	return true
}
