package events

import (
	"time"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

// ModelCall is published after every model invocation, successful or not.
type ModelCall struct {
	RunID        string             `json:"run_id"`
	Mode         models.Mode        `json:"mode"`
	ModelID      string             `json:"model_id"`
	AttemptIndex int                `json:"attempt_index"`
	Kind         models.AttemptKind `json:"kind"`
	LatencyMs    float64            `json:"latency_ms"`
	InputTokens  int                `json:"input_tokens"`
	OutputTokens int                `json:"output_tokens"`
	Error        string             `json:"error,omitempty"`
	At           time.Time          `json:"at"`
}

// Validation is published after every contract validation.
type Validation struct {
	RunID          string    `json:"run_id"`
	AttemptIndex   int       `json:"attempt_index"`
	Passed         bool      `json:"passed"`
	ErrorCount     int       `json:"error_count"`
	Errors         []string  `json:"errors"`
	RepairsApplied []string  `json:"repairs_applied,omitempty"`
	LocalMs        float64   `json:"local_ms"`
	At             time.Time `json:"at"`
}

// RepairAttempt is published before a billable repair call is made.
type RepairAttempt struct {
	RunID       string    `json:"run_id"`
	RepairIndex int       `json:"repair_index"`
	RepairCap   int       `json:"repair_cap"`
	PriorErrors int       `json:"prior_errors"`
	At          time.Time `json:"at"`
}

// Observer receives run events. Every value handed to an observer is a copy;
// implementations must not block for long since they run inline with the
// orchestrator.
type Observer interface {
	OnModelCall(ModelCall)
	OnValidation(Validation)
	OnRepairAttempt(RepairAttempt)
	OnRunCompleted(*models.RunRecord)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnModelCall(ModelCall)            {}
func (NopObserver) OnValidation(Validation)          {}
func (NopObserver) OnRepairAttempt(RepairAttempt)    {}
func (NopObserver) OnRunCompleted(*models.RunRecord) {}

type MultiObserver struct {
	observers []Observer
}

func NewMultiObserver(observers ...Observer) *MultiObserver {
	return &MultiObserver{observers: observers}
}

func (m *MultiObserver) Add(o Observer) {
	m.observers = append(m.observers, o)
}

func (m *MultiObserver) OnModelCall(e ModelCall) {
	for _, o := range m.observers {
		o.OnModelCall(e)
	}
}

func (m *MultiObserver) OnValidation(e Validation) {
	for _, o := range m.observers {
		o.OnValidation(e)
	}
}

func (m *MultiObserver) OnRepairAttempt(e RepairAttempt) {
	for _, o := range m.observers {
		o.OnRepairAttempt(e)
	}
}

// OnRunCompleted hands each observer its own snapshot.
func (m *MultiObserver) OnRunCompleted(r *models.RunRecord) {
	for _, o := range m.observers {
		o.OnRunCompleted(r.Clone())
	}
}
