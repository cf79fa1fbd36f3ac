package api

import (
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/repair"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type ValidateRequest struct {
	Candidate      any  `json:"candidate"`
	Grounded       bool `json:"grounded"`
	CorrectionMode bool `json:"correction_mode"`
	HadRepairs     bool `json:"had_repairs"`
}

type RepairRequest struct {
	Raw            string `json:"raw"`
	Grounded       bool   `json:"grounded"`
	CorrectionMode bool   `json:"correction_mode"`
}

// RepairResponse reports the local repair pass and the validation of
// whatever it produced.
type RepairResponse struct {
	Repair            repair.Result            `json:"repair"`
	SynthesizedFields []string                 `json:"synthesized_fields,omitempty"`
	Validation        *models.ValidationResult `json:"validation,omitempty"`
}

type RunListResponse struct {
	PromptHash string              `json:"prompt_hash"`
	Runs       []*models.RunRecord `json:"runs"`
}
