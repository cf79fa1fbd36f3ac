package history

import (
	"context"
	"errors"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

var (
	ErrNotFound     = errors.New("run not found")
	ErrDuplicateRun = errors.New("run already recorded")
)

// Store is append-only run history. Core record fields are written once by
// Append; Annotate only attaches derived telemetry.
type Store interface {
	Append(ctx context.Context, record *models.RunRecord) error
	Annotate(ctx context.Context, runID string, telemetry models.Telemetry) error
	Get(ctx context.Context, runID string) (*models.RunRecord, error)
	// ListByPrompt returns every run for a prompt hash, oldest first.
	ListByPrompt(ctx context.Context, promptHash string) ([]*models.RunRecord, error)
}

// StabilityKey identifies runs whose outputs are comparable for drift.
type StabilityKey struct {
	Mode       models.Mode
	ModelID    string
	Grounded   bool
	PromptHash string
}

func KeyOf(r *models.RunRecord) StabilityKey {
	return StabilityKey{
		Mode:       r.Mode,
		ModelID:    r.ModelID,
		Grounded:   r.Grounded,
		PromptHash: r.PromptHash,
	}
}

// LatestPrior returns the most recent run with the same key that produced
// output, ignoring excludeRunID. Records must be ordered oldest first.
func LatestPrior(records []*models.RunRecord, key StabilityKey, excludeRunID string) *models.RunRecord {
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if r.RunID == excludeRunID || r.Status == models.RunFailed {
			continue
		}
		if KeyOf(r) == key {
			return r
		}
	}
	return nil
}

// LatestByMode returns the newest non-failed run per mode.
func LatestByMode(records []*models.RunRecord) map[models.Mode]*models.RunRecord {
	out := make(map[models.Mode]*models.RunRecord)
	for _, r := range records {
		if r.Status == models.RunFailed {
			continue
		}
		out[r.Mode] = r
	}
	return out
}

func stripTelemetry(r *models.RunRecord) *models.RunRecord {
	c := r.Clone()
	c.Telemetry = nil
	return c
}
