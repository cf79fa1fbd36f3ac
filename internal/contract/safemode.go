package contract

import (
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

// SafeModeOutput returns the fixed fallback emitted once the model-repair
// budget is exhausted. It passes validation under every ValidationContext.
func SafeModeOutput() models.GovernedOutput {
	return models.GovernedOutput{
		CanonicalAnswer: []string{
			"A reliable structured answer could not be produced for this request.",
			"This is a fixed fallback and contains no model-generated claims.",
		},
		ThreePerspectives: models.Perspectives{
			Optimizer: []string{"Rephrasing the request with a narrower scope usually yields a compliant answer."},
			Skeptic:   []string{"The model output failed contract validation after every permitted repair, so none of it is shown."},
			Operator:  []string{"Retry the request, or raise the repair cap in settings if failures persist."},
		},
		UnknownsAndChecks: []string{
			"Whether the failure came from the prompt or from the model is not known.",
		},
		NextSteps: []string{
			"Retry the request with a more specific prompt.",
			"Review the attempt errors recorded in the run evidence.",
		},
		Sources: models.Sources{
			Used:  false,
			Items: []models.SourceItem{},
			Note:  NoteNoSources,
		},
		Risk: models.Risk{
			Level:           models.RiskHigh,
			SafeModeApplied: true,
		},
		DiffNote: []string{
			"Safe mode replaced the model output after validation failed.",
		},
	}
}
