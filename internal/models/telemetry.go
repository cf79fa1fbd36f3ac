package models

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type HallucinationLevel string

const (
	HallucinationLow    HallucinationLevel = "LOW"
	HallucinationMedium HallucinationLevel = "MEDIUM"
	HallucinationHigh   HallucinationLevel = "HIGH"
)

type Verdict string

const (
	VerdictPass   Verdict = "pass"
	VerdictFail   Verdict = "fail"
	VerdictReview Verdict = "review"
)

// Telemetry holds derived, post-hoc signals. It never changes the outcome
// of the run it describes.
type Telemetry struct {
	Drift         DriftReport         `json:"drift"`
	Hallucination HallucinationReport `json:"hallucination"`
	Audit         *AuditResult        `json:"audit,omitempty"`
}

type AuthorityFlag struct {
	Label    string `json:"label"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type AuthorityDrift struct {
	Flags    []AuthorityFlag `json:"flags"`
	Total    int             `json:"total"`
	Severity Severity        `json:"severity"`
}

type ModeDivergence struct {
	ModeA      Mode    `json:"mode_a"`
	ModeB      Mode    `json:"mode_b"`
	RunA       string  `json:"run_a"`
	RunB       string  `json:"run_b"`
	Similarity float64 `json:"similarity"`
}

type DriftReport struct {
	// Stability is nil when no prior run exists for the same
	// (mode, model, grounding, prompt hash) tuple.
	Stability         *float64 `json:"stability"`
	StabilityPriorRun string   `json:"stability_prior_run,omitempty"`
	StructureScore    int      `json:"structure_score"`

	// InitialStructureScore scores the first attempt's raw reply, before
	// any repair or safe mode.
	InitialStructureScore int              `json:"initial_structure_score"`
	Authority             AuthorityDrift   `json:"authority"`
	ModeDivergence        []ModeDivergence `json:"mode_divergence,omitempty"`
}

type RiskContribution struct {
	Reason string `json:"reason"`
	Points int    `json:"points"`
}

type HallucinationReport struct {
	UncitedLinks     []string           `json:"uncited_links"`
	UnusedSources    []string           `json:"unused_sources"`
	PlaceholderLinks []string           `json:"placeholder_links"`
	NumericClaims    int                `json:"numeric_claims"`
	Score            int                `json:"score"`
	Level            HallucinationLevel `json:"level"`
	Contributions    []RiskContribution `json:"contributions"`
}

// AuditFinding is one auditor's output.
type AuditFinding struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
	DurationMs float64 `json:"duration_ms"`
}

type AuditResult struct {
	Model      string         `json:"model"`
	Depth      string         `json:"depth"`
	Findings   []AuditFinding `json:"findings"`
	Confidence float64        `json:"confidence"`
	Verdict    Verdict        `json:"verdict"`
}
