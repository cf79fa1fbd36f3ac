package runner

import (
	"context"
	"time"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/audit"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/drift"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/hallucination"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/history"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/rs/zerolog"
)

const auditTimeout = 60 * time.Second

type Executor interface {
	ExecuteWith(ctx context.Context, req models.RunRequest, settings config.Settings) (*models.RunRecord, error)
}

type SettingsProvider interface {
	Load() (config.Settings, error)
}

// Runner executes a run and then derives its telemetry. Telemetry is
// computed after the run is recorded and never changes its outcome.
type Runner struct {
	executor      Executor
	store         history.Store
	settings      SettingsProvider
	drift         *drift.Scorer
	hallucination *hallucination.Detector
	audit         *audit.Pipeline
	logger        *zerolog.Logger
}

func New(
	executor Executor,
	store history.Store,
	settings SettingsProvider,
	driftScorer *drift.Scorer,
	detector *hallucination.Detector,
	auditPipeline *audit.Pipeline,
	logger *zerolog.Logger,
) *Runner {
	if driftScorer == nil {
		driftScorer = drift.NewScorer(nil)
	}
	if detector == nil {
		detector = hallucination.NewDetector(nil)
	}
	return &Runner{
		executor:      executor,
		store:         store,
		settings:      settings,
		drift:         driftScorer,
		hallucination: detector,
		audit:         auditPipeline,
		logger:        logger,
	}
}

// Run returns the record with telemetry attached. A failed run is returned
// as is together with its error.
func (r *Runner) Run(ctx context.Context, req models.RunRequest) (*models.RunRecord, error) {
	settings, err := r.settings.Load()
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to load settings, using defaults")
		settings = config.DefaultSettings()
	}

	rec, err := r.executor.ExecuteWith(ctx, req, settings)
	if err != nil || rec == nil || rec.Status == models.RunFailed {
		return rec, err
	}

	priors, err := r.store.ListByPrompt(ctx, rec.PromptHash)
	if err != nil {
		r.logger.Error().Err(err).Str("run_id", rec.RunID).Msg("failed to load run history for drift")
		priors = nil
	}

	telemetry := models.Telemetry{
		Drift:         r.drift.Score(rec, priors),
		Hallucination: r.hallucination.Analyze(rec),
	}

	if settings.Audit.Enabled && r.audit != nil {
		actx, cancel := context.WithTimeout(ctx, auditTimeout)
		telemetry.Audit = r.audit.Run(actx, settings.Audit, subjectOf(rec))
		cancel()
	}

	if err := r.store.Annotate(ctx, rec.RunID, telemetry); err != nil {
		r.logger.Error().Err(err).Str("run_id", rec.RunID).Msg("failed to annotate run with telemetry")
	}

	rec.Telemetry = &telemetry

	r.logger.Info().
		Str("run_id", rec.RunID).
		Str("status", string(rec.Status)).
		Int("structure_score", telemetry.Drift.StructureScore).
		Int("initial_structure_score", telemetry.Drift.InitialStructureScore).
		Str("hallucination", string(telemetry.Hallucination.Level)).
		Msg("run complete")
	return rec, nil
}

func subjectOf(rec *models.RunRecord) audit.Subject {
	s := audit.Subject{
		RunID:    rec.RunID,
		Prompt:   rec.Prompt,
		Mode:     rec.Mode,
		Grounded: rec.Grounded,
		Answer:   drift.OutputText(rec),
	}
	if rec.Output != nil {
		s.Sources = rec.Output.Sources.Items
	}
	return s
}
