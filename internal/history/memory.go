package history

import (
	"context"
	"sync"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[string]*models.RunRecord
	byPrompt  map[string][]string
	telemetry map[string]models.Telemetry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:      make(map[string]*models.RunRecord),
		byPrompt:  make(map[string][]string),
		telemetry: make(map[string]models.Telemetry),
	}
}

func (s *MemoryStore) Append(_ context.Context, record *models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[record.RunID]; exists {
		return ErrDuplicateRun
	}
	s.runs[record.RunID] = stripTelemetry(record)
	s.byPrompt[record.PromptHash] = append(s.byPrompt[record.PromptHash], record.RunID)
	return nil
}

func (s *MemoryStore) Annotate(_ context.Context, runID string, telemetry models.Telemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; !exists {
		return ErrNotFound
	}
	s.telemetry[runID] = telemetry
	return nil
}

func (s *MemoryStore) Get(_ context.Context, runID string) (*models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.withTelemetry(r), nil
}

func (s *MemoryStore) ListByPrompt(_ context.Context, promptHash string) ([]*models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byPrompt[promptHash]
	out := make([]*models.RunRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.withTelemetry(s.runs[id]))
	}
	return out, nil
}

// withTelemetry must be called with the lock held.
func (s *MemoryStore) withTelemetry(r *models.RunRecord) *models.RunRecord {
	c := r.Clone()
	if t, ok := s.telemetry[r.RunID]; ok {
		c.Telemetry = &t
	}
	return c
}
