package models

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type Perspectives struct {
	Optimizer []string `json:"optimizer"`
	Skeptic   []string `json:"skeptic"`
	Operator  []string `json:"operator"`
}

type SourceItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Sources struct {
	Used  bool         `json:"used"`
	Items []SourceItem `json:"items"`
	Note  string       `json:"note"`
}

type Risk struct {
	Level           RiskLevel `json:"level"`
	SafeModeApplied bool      `json:"safe_mode_applied"`
}

// GovernedOutput is the structured contract every governed run must produce.
type GovernedOutput struct {
	CanonicalAnswer   []string     `json:"canonical_answer" jsonschema:"Direct answer lines"`
	ThreePerspectives Perspectives `json:"three_perspectives" jsonschema:"Optimizer skeptic and operator views"`
	UnknownsAndChecks []string     `json:"unknowns_and_checks" jsonschema:"Open questions and verification steps"`
	NextSteps         []string     `json:"next_steps" jsonschema:"Actionable follow ups"`
	Sources           Sources      `json:"sources" jsonschema:"Declared external sources"`
	Risk              Risk         `json:"risk" jsonschema:"Risk level and safe mode flag"`
	DiffNote          []string     `json:"diff_note" jsonschema:"What changed relative to the previous answer"`
}

// ValidationResult is created fresh by every validation call.
type ValidationResult struct {
	Passed     bool     `json:"passed"`
	Errors     []string `json:"errors"`
	ErrorCount int      `json:"error_count"`
}
