package audit

import (
	"context"
	"sync"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/rs/zerolog"
)

const (
	passThreshold   = 0.8
	reviewThreshold = 0.5
)

// Pipeline runs a depth-bounded prefix of the configured auditors
// concurrently and aggregates their scores.
type Pipeline struct {
	auditors []Auditor
	model    string
	logger   *zerolog.Logger
}

func NewPipeline(auditors []Auditor, model string, logger *zerolog.Logger) *Pipeline {
	return &Pipeline{auditors: auditors, model: model, logger: logger}
}

func (p *Pipeline) Run(ctx context.Context, settings config.AuditSettings, subject Subject) *models.AuditResult {
	selected := p.auditors
	if n := settings.AuditorCount(); n > 0 && n < len(selected) {
		selected = selected[:n]
	}

	findings := make([]models.AuditFinding, len(selected))
	var wg sync.WaitGroup
	for i, a := range selected {
		wg.Add(1)
		go func(i int, a Auditor) {
			defer wg.Done()
			findings[i] = a.Audit(ctx, subject)
		}(i, a)
	}
	wg.Wait()

	result := Aggregate(findings)
	result.Model = p.model
	result.Depth = settings.Depth

	p.logger.Info().
		Str("run_id", subject.RunID).
		Int("auditors", len(findings)).
		Float64("confidence", result.Confidence).
		Str("verdict", string(result.Verdict)).
		Msg("audit complete")
	return result
}

// Aggregate averages the finding scores into a confidence and verdict.
// No findings is a fail.
func Aggregate(findings []models.AuditFinding) *models.AuditResult {
	result := &models.AuditResult{Findings: findings}
	if len(findings) == 0 {
		result.Findings = []models.AuditFinding{}
		result.Verdict = models.VerdictFail
		return result
	}

	total := 0.0
	for _, f := range findings {
		total += f.Score
	}
	result.Confidence = total / float64(len(findings))
	result.Verdict = verdict(result.Confidence)
	return result
}

func verdict(confidence float64) models.Verdict {
	if confidence > passThreshold {
		return models.VerdictPass
	}
	if confidence > reviewThreshold {
		return models.VerdictReview
	}
	return models.VerdictFail
}
