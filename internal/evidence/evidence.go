package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/history"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

// Document is the exported evidence for one prompt: the run asked about,
// every recorded run for its prompt hash and the latest baseline.
type Document struct {
	GeneratedAt time.Time           `json:"generated_at"`
	PromptHash  string              `json:"prompt_hash"`
	Current     *models.RunRecord   `json:"current,omitempty"`
	History     []*models.RunRecord `json:"history"`
	Baselines   []*models.RunRecord `json:"baselines"`
}

// Build assembles the document for a prompt hash. current may be nil, in
// which case the newest recorded run is used.
func Build(ctx context.Context, store history.Store, promptHash string, current *models.RunRecord) (*Document, error) {
	runs, err := store.ListByPrompt(ctx, promptHash)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for %s: %w", promptHash, err)
	}

	doc := &Document{
		GeneratedAt: time.Now().UTC(),
		PromptHash:  promptHash,
		Current:     current,
		History:     runs,
		Baselines:   []*models.RunRecord{},
	}
	if doc.History == nil {
		doc.History = []*models.RunRecord{}
	}
	if doc.Current == nil && len(runs) > 0 {
		doc.Current = runs[len(runs)-1]
	}

	if b, ok := history.LatestByMode(runs)[models.ModeBaseline]; ok {
		doc.Baselines = append(doc.Baselines, b)
	}
	return doc, nil
}

// Write encodes the document as indented JSON.
func (d *Document) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
