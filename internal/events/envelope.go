package events

import (
	"encoding/json"
	"time"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

type EventType string

const (
	EventModelCall     EventType = "model_call"
	EventValidation    EventType = "validation"
	EventRepairAttempt EventType = "repair_attempt"
	EventRunCompleted  EventType = "run_completed"
)

// Envelope is the wire form shared by the Redis and Pub/Sub observers.
type Envelope struct {
	Type    EventType       `json:"type"`
	RunID   string          `json:"run_id"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// RunSummary is the run_completed payload. Full records stay in history.
type RunSummary struct {
	RunID           string           `json:"run_id"`
	Mode            models.Mode      `json:"mode"`
	ModelID         string           `json:"model_id"`
	PromptHash      string           `json:"prompt_hash"`
	Status          models.RunStatus `json:"status"`
	SafeModeApplied bool             `json:"safe_mode_applied"`
	Repairs         int              `json:"repairs"`
	Attempts        int              `json:"attempts"`
	Metrics         models.Metrics   `json:"metrics"`
	Error           string           `json:"error,omitempty"`
}

func Summarize(r *models.RunRecord) RunSummary {
	return RunSummary{
		RunID:           r.RunID,
		Mode:            r.Mode,
		ModelID:         r.ModelID,
		PromptHash:      r.PromptHash,
		Status:          r.Status,
		SafeModeApplied: r.SafeModeApplied,
		Repairs:         r.Repairs,
		Attempts:        len(r.Attempts),
		Metrics:         r.Metrics,
		Error:           r.Error,
	}
}

func newEnvelope(t EventType, runID string, at time.Time, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, RunID: runID, At: at, Payload: data}, nil
}

func envelopeFor(event any) (Envelope, error) {
	switch e := event.(type) {
	case ModelCall:
		return newEnvelope(EventModelCall, e.RunID, e.At, e)
	case Validation:
		return newEnvelope(EventValidation, e.RunID, e.At, e)
	case RepairAttempt:
		return newEnvelope(EventRepairAttempt, e.RunID, e.At, e)
	case *models.RunRecord:
		return newEnvelope(EventRunCompleted, e.RunID, e.CompletedAt, Summarize(e))
	}
	return Envelope{}, errUnknownEvent
}
