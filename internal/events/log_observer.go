package events

import (
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/rs/zerolog"
)

type LogObserver struct {
	logger *zerolog.Logger
}

func NewLogObserver(logger *zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnModelCall(e ModelCall) {
	ev := o.logger.Debug()
	if e.Error != "" {
		ev = o.logger.Warn().Str("error", e.Error)
	}
	ev.Str("run_id", e.RunID).
		Str("model_id", e.ModelID).
		Int("attempt", e.AttemptIndex).
		Str("kind", string(e.Kind)).
		Float64("latency_ms", e.LatencyMs).
		Msg("model called")
}

func (o *LogObserver) OnValidation(e Validation) {
	o.logger.Debug().
		Str("run_id", e.RunID).
		Int("attempt", e.AttemptIndex).
		Bool("passed", e.Passed).
		Int("error_count", e.ErrorCount).
		Strs("repairs_applied", e.RepairsApplied).
		Msg("validation completed")
}

func (o *LogObserver) OnRepairAttempt(e RepairAttempt) {
	o.logger.Info().
		Str("run_id", e.RunID).
		Int("repair", e.RepairIndex).
		Int("repair_cap", e.RepairCap).
		Int("prior_errors", e.PriorErrors).
		Msg("requesting model repair")
}

func (o *LogObserver) OnRunCompleted(r *models.RunRecord) {
	o.logger.Info().
		Str("run_id", r.RunID).
		Str("mode", string(r.Mode)).
		Str("status", string(r.Status)).
		Bool("safe_mode", r.SafeModeApplied).
		Int("repairs", r.Repairs).
		Float64("model_ms", r.Metrics.ModelMs).
		Float64("local_ms", r.Metrics.LocalMs).
		Msg("run completed")
}
