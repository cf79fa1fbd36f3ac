package models

import (
	"time"
)

type Mode string

const (
	ModeBaseline Mode = "baseline"
	ModeGoverned Mode = "governed"
	ModeHybrid   Mode = "hybrid"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeBaseline, ModeGoverned, ModeHybrid:
		return true
	}
	return false
}

type AttemptKind string

const (
	AttemptInitial AttemptKind = "initial"
	AttemptRepair  AttemptKind = "repair"
)

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunSafeMode  RunStatus = "safe_mode"
	RunFailed    RunStatus = "failed"
)

type ResponseType string

const (
	ResponseText    ResponseType = "text"
	ResponseNonJSON ResponseType = "non_json"
)

// RunRequest is the input accepted by every transport.
type RunRequest struct {
	Prompt         string `json:"prompt" jsonschema:"User prompt to execute"`
	Mode           Mode   `json:"mode,omitempty" jsonschema:"baseline governed or hybrid (default governed)"`
	Grounded       bool   `json:"grounded,omitempty" jsonschema:"Allow the model to consult external sources"`
	CorrectionMode *bool  `json:"correction_mode,omitempty" jsonschema:"Force correction mode on or off"`
}

// Attempt is one model call inside a run. Attempts are never modified
// after they are appended to a RunRecord.
type Attempt struct {
	Index             int         `json:"index"`
	Kind              AttemptKind `json:"kind"`
	OK                bool        `json:"ok"`
	ModelLatencyMs    float64     `json:"model_latency_ms"`
	LocalLatencyMs    float64     `json:"local_latency_ms"`
	Errors            []string    `json:"errors"`
	RawText           string      `json:"raw_text"`
	RepairsApplied    []string    `json:"repairs_applied,omitempty"`
	SynthesizedFields []string    `json:"synthesized_fields,omitempty"`
	InputTokens       int         `json:"input_tokens,omitempty"`
	OutputTokens      int         `json:"output_tokens,omitempty"`
	PromptChars       int         `json:"prompt_chars"`
}

type Metrics struct {
	TotalMs         float64 `json:"total_ms"`
	ModelMs         float64 `json:"model_ms"`
	LocalMs         float64 `json:"local_ms"`
	BillableShare   float64 `json:"billable_share"`
	BillableCalls   int     `json:"billable_calls"`
	RepairCalls     int     `json:"repair_calls"`
	InputTokens     int     `json:"input_tokens"`
	OutputTokens    int     `json:"output_tokens"`
	TotalTokens     int     `json:"total_tokens"`
	TokensEstimated bool    `json:"tokens_estimated"`
}

type RunRecord struct {
	RunID           string            `json:"run_id"`
	Mode            Mode              `json:"mode"`
	ModelID         string            `json:"model_id"`
	Grounded        bool              `json:"grounded"`
	CorrectionMode  bool              `json:"correction_mode"`
	PromptHash      string            `json:"prompt_hash"`
	Prompt          string            `json:"prompt"`
	Status          RunStatus         `json:"status"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     time.Time         `json:"completed_at"`
	RepairCap       int               `json:"repair_cap"`
	Attempts        []Attempt         `json:"attempts"`
	FinalValidation *ValidationResult `json:"final_validation,omitempty"`
	SafeModeApplied bool              `json:"safe_mode_applied"`
	Repairs         int               `json:"repairs"`
	Output          *GovernedOutput   `json:"output,omitempty"`
	RawOutput       string            `json:"raw_output,omitempty"`
	ResponseType    ResponseType      `json:"response_type,omitempty"`
	Error           string            `json:"error,omitempty"`
	Metrics         Metrics           `json:"metrics"`
	Telemetry       *Telemetry        `json:"telemetry,omitempty"`
}

// Clone returns a deep copy so observers and stores never share memory
// with the record the orchestrator is still mutating.
func (r *RunRecord) Clone() *RunRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Attempts = make([]Attempt, len(r.Attempts))
	for i, a := range r.Attempts {
		a.Errors = cloneStrings(a.Errors)
		a.RepairsApplied = cloneStrings(a.RepairsApplied)
		a.SynthesizedFields = cloneStrings(a.SynthesizedFields)
		c.Attempts[i] = a
	}
	if r.FinalValidation != nil {
		v := *r.FinalValidation
		v.Errors = cloneStrings(v.Errors)
		c.FinalValidation = &v
	}
	if r.Output != nil {
		o := r.Output.Clone()
		c.Output = &o
	}
	if r.Telemetry != nil {
		t := *r.Telemetry
		c.Telemetry = &t
	}
	return &c
}

func (o GovernedOutput) Clone() GovernedOutput {
	c := o
	c.CanonicalAnswer = cloneStrings(o.CanonicalAnswer)
	c.ThreePerspectives = Perspectives{
		Optimizer: cloneStrings(o.ThreePerspectives.Optimizer),
		Skeptic:   cloneStrings(o.ThreePerspectives.Skeptic),
		Operator:  cloneStrings(o.ThreePerspectives.Operator),
	}
	c.UnknownsAndChecks = cloneStrings(o.UnknownsAndChecks)
	c.NextSteps = cloneStrings(o.NextSteps)
	c.DiffNote = cloneStrings(o.DiffNote)
	if o.Sources.Items != nil {
		c.Sources.Items = append([]SourceItem(nil), o.Sources.Items...)
	}
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
