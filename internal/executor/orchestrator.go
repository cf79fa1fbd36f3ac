package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/contract"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/detectors"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/events"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/llm"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/metrics"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/repair"
	"github.com/rs/zerolog"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks . ModelInvoker,HistoryStore,SettingsProvider

// ModelInvoker makes exactly one model call per Invoke.
type ModelInvoker interface {
	Invoke(ctx context.Context, prompt string, grounded bool) (*llm.LLMResponse, error)
	ModelID() string
}

// HistoryStore receives every finished run.
type HistoryStore interface {
	Append(ctx context.Context, record *models.RunRecord) error
}

// SettingsProvider is read once at the start of every run.
type SettingsProvider interface {
	Load() (config.Settings, error)
}

var (
	ErrModelInvocation = errors.New("model invocation failed")
	ErrContractBuild   = errors.New("contract build failed")
	ErrInvalidRequest  = errors.New("invalid run request")
)

type Orchestrator struct {
	invoker   ModelInvoker
	history   HistoryStore
	settings  SettingsProvider
	validator *contract.Validator
	detectors *detectors.Detectors
	observer  events.Observer
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewOrchestrator(
	invoker ModelInvoker,
	history HistoryStore,
	settings SettingsProvider,
	det *detectors.Detectors,
	observer events.Observer,
	logger *zerolog.Logger,
) *Orchestrator {
	if det == nil {
		det = detectors.Default()
	}
	if observer == nil {
		observer = events.NopObserver{}
	}
	return &Orchestrator{
		invoker:   invoker,
		history:   history,
		settings:  settings,
		validator: contract.NewValidator(det.Narration),
		detectors: det,
		observer:  observer,
		logger:    logger,
		now:       time.Now,
	}
}

// runContext is owned by exactly one Execute call.
type runContext struct {
	req        models.RunRequest
	settings   *config.Settings
	record     *models.RunRecord
	grounding  detectors.GroundingDecision
	repairCap  int
	basePrompt string
	lastRaw    string
	lastErrors []string
	err        error
}

// Execute drives one run through the state machine. Contract violations
// never surface as errors: they end in a valid output or safe mode. Only a
// failed model call, an unbuildable contract or an invalid request return
// an error, and only the first two still produce a recorded run.
func (o *Orchestrator) Execute(ctx context.Context, req models.RunRequest) (*models.RunRecord, error) {
	return o.execute(ctx, req, nil)
}

// ExecuteWith runs with a settings snapshot the caller already loaded, so
// that one run never observes two different settings reads. The snapshot
// is validated like a loaded one.
func (o *Orchestrator) ExecuteWith(ctx context.Context, req models.RunRequest, settings config.Settings) (*models.RunRecord, error) {
	return o.execute(ctx, req, &settings)
}

func (o *Orchestrator) execute(ctx context.Context, req models.RunRequest, settings *config.Settings) (*models.RunRecord, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if req.Mode == "" {
		req.Mode = models.ModeGoverned
	}
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, req.Mode)
	}

	rc := &runContext{
		req:      req,
		settings: settings,
		record: &models.RunRecord{
			RunID:      uuid.NewString(),
			Mode:       req.Mode,
			ModelID:    o.invoker.ModelID(),
			PromptHash: PromptHash(req.Prompt),
			Prompt:     req.Prompt,
			StartedAt:  o.now().UTC(),
			Attempts:   []models.Attempt{},
		},
	}

	o.logger.Info().
		Str("run_id", rc.record.RunID).
		Str("mode", string(req.Mode)).
		Msg("starting run")

	var s state = stateBuildContract{}
	for !terminal(s) {
		prev := s.name()
		s = o.step(ctx, rc, s)
		o.logger.Debug().Str("run_id", rc.record.RunID).Str("from", prev).Str("to", s.name()).Msg("transition")
	}

	return rc.record.Clone(), rc.err
}

// step is the single transition function of the run state machine.
func (o *Orchestrator) step(ctx context.Context, rc *runContext, s state) state {
	switch st := s.(type) {
	case stateBuildContract:
		return o.buildContract(rc)
	case stateCallModel:
		return o.callModel(ctx, rc, st)
	case stateLocalRepair:
		return o.localRepair(st)
	case stateValidate:
		return o.validate(rc, st)
	case stateRepairLoop:
		return o.repairLoop(rc)
	case stateSafeMode:
		return o.safeMode(rc)
	case stateEmitEvidence:
		return o.emitEvidence(ctx, rc)
	case stateFailed:
		return o.fail(ctx, rc, st.err)
	default:
		return stateFailed{err: fmt.Errorf("unknown state %s", s.name())}
	}
}

func (o *Orchestrator) buildContract(rc *runContext) state {
	if rc.settings == nil {
		loaded, err := o.settings.Load()
		if err != nil {
			return stateFailed{err: fmt.Errorf("%w: %w", ErrContractBuild, err)}
		}
		rc.settings = &loaded
	}
	settings := *rc.settings
	if err := settings.Validate(); err != nil {
		return stateFailed{err: fmt.Errorf("%w: %w", ErrContractBuild, err)}
	}

	r := rc.record
	rc.grounding = o.detectors.Grounding.Resolve(rc.req.Prompt, rc.req.Grounded)
	r.Grounded = rc.grounding.Grounded
	r.CorrectionMode = o.detectors.Correction.Detect(rc.req.Prompt, rc.req.CorrectionMode)

	rc.repairCap = settings.RepairCap
	if r.Mode == models.ModeHybrid {
		rc.repairCap = 0
	}
	r.RepairCap = rc.repairCap

	if r.Mode == models.ModeBaseline {
		return stateCallModel{kind: models.AttemptInitial, prompt: rc.req.Prompt}
	}

	prompt, err := BuildContractPrompt(rc.req.Prompt, rc.grounding, r.CorrectionMode)
	if err != nil {
		return stateFailed{err: fmt.Errorf("%w: %w", ErrContractBuild, err)}
	}
	rc.basePrompt = prompt
	return stateCallModel{kind: models.AttemptInitial, prompt: prompt}
}

func (o *Orchestrator) callModel(ctx context.Context, rc *runContext, st stateCallModel) state {
	r := rc.record
	attempt := models.Attempt{
		Index:       len(r.Attempts),
		Kind:        st.kind,
		Errors:      []string{},
		PromptChars: len(st.prompt),
	}

	start := o.now()
	resp, err := o.invoker.Invoke(ctx, st.prompt, rc.grounding.Grounded)
	attempt.ModelLatencyMs = elapsedMs(start, o.now())

	call := events.ModelCall{
		RunID:        r.RunID,
		Mode:         r.Mode,
		ModelID:      r.ModelID,
		AttemptIndex: attempt.Index,
		Kind:         attempt.Kind,
		LatencyMs:    attempt.ModelLatencyMs,
		At:           o.now().UTC(),
	}

	if err != nil {
		attempt.Errors = []string{err.Error()}
		r.Attempts = append(r.Attempts, attempt)
		call.Error = err.Error()
		o.observer.OnModelCall(call)
		return stateFailed{err: fmt.Errorf("%w: %w", ErrModelInvocation, err)}
	}

	attempt.RawText = resp.Content
	attempt.InputTokens = resp.InputTokens
	attempt.OutputTokens = resp.OutputTokens
	if resp.ModelID != "" {
		r.ModelID = resp.ModelID
		call.ModelID = resp.ModelID
	}
	call.InputTokens = resp.InputTokens
	call.OutputTokens = resp.OutputTokens
	o.observer.OnModelCall(call)

	rc.lastRaw = resp.Content

	if r.Mode == models.ModeBaseline {
		attempt.OK = true
		r.Attempts = append(r.Attempts, attempt)
		r.RawOutput = resp.Content
		r.ResponseType = ClassifyBaseline(resp.Content)
		return stateEmitEvidence{}
	}

	return stateLocalRepair{attempt: attempt, raw: resp.Content}
}

func (o *Orchestrator) localRepair(st stateLocalRepair) state {
	start := o.now()
	res := repair.AttemptLocalRepair(st.raw)
	st.attempt.RepairsApplied = res.RepairsApplied

	next := stateValidate{attempt: st.attempt, parseError: res.ParseError}
	if res.Success {
		next.candidate = res.Parsed
		if obj, ok := res.Parsed.(map[string]any); ok {
			filled, synthesized := repair.EnsureRequiredFields(obj)
			next.candidate = filled
			next.attempt.SynthesizedFields = synthesized
			next.synthesized = len(synthesized) > 0
		}
	}
	next.localMs = elapsedMs(start, o.now())
	return next
}

func (o *Orchestrator) validate(rc *runContext, st stateValidate) state {
	r := rc.record
	start := o.now()

	var result models.ValidationResult
	if st.candidate == nil {
		result = models.ValidationResult{
			Errors:     []string{"response is not valid JSON: " + st.parseError},
			ErrorCount: 1,
		}
	} else {
		result = o.validator.Validate(st.candidate, contract.ValidationContext{
			Grounded:       r.Grounded,
			CorrectionMode: r.CorrectionMode,
			HadRepairs:     st.attempt.Kind == models.AttemptRepair || st.synthesized,
		})
	}

	var output *models.GovernedOutput
	if result.Passed {
		out, err := decodeOutput(st.candidate)
		if err != nil {
			result = models.ValidationResult{
				Errors:     []string{"validated object could not be decoded: " + err.Error()},
				ErrorCount: 1,
			}
		} else {
			output = &out
		}
	}

	attempt := st.attempt
	attempt.OK = result.Passed
	attempt.Errors = result.Errors
	attempt.LocalLatencyMs = st.localMs + elapsedMs(start, o.now())
	r.Attempts = append(r.Attempts, attempt)

	final := result
	final.Errors = append([]string(nil), result.Errors...)
	r.FinalValidation = &final

	o.observer.OnValidation(events.Validation{
		RunID:          r.RunID,
		AttemptIndex:   attempt.Index,
		Passed:         result.Passed,
		ErrorCount:     result.ErrorCount,
		Errors:         append([]string(nil), result.Errors...),
		RepairsApplied: append([]string(nil), attempt.RepairsApplied...),
		LocalMs:        attempt.LocalLatencyMs,
		At:             o.now().UTC(),
	})

	if result.Passed {
		r.Output = output
		return stateEmitEvidence{}
	}

	rc.lastErrors = result.Errors
	if r.Repairs < rc.repairCap {
		return stateRepairLoop{}
	}
	return stateSafeMode{}
}

func (o *Orchestrator) repairLoop(rc *runContext) state {
	r := rc.record
	r.Repairs++

	o.observer.OnRepairAttempt(events.RepairAttempt{
		RunID:       r.RunID,
		RepairIndex: r.Repairs,
		RepairCap:   rc.repairCap,
		PriorErrors: len(rc.lastErrors),
		At:          o.now().UTC(),
	})

	prompt, err := BuildRepairPrompt(rc.basePrompt, rc.lastErrors, rc.lastRaw)
	if err != nil {
		return stateFailed{err: fmt.Errorf("%w: %w", ErrContractBuild, err)}
	}
	return stateCallModel{kind: models.AttemptRepair, prompt: prompt}
}

func (o *Orchestrator) safeMode(rc *runContext) state {
	r := rc.record
	out := contract.SafeModeOutput()
	r.Output = &out
	r.SafeModeApplied = true
	r.Status = models.RunSafeMode

	o.logger.Warn().
		Str("run_id", r.RunID).
		Int("repairs", r.Repairs).
		Strs("errors", rc.lastErrors).
		Msg("repair budget exhausted, applying safe mode")
	return stateEmitEvidence{}
}

func (o *Orchestrator) emitEvidence(ctx context.Context, rc *runContext) state {
	r := rc.record
	if r.Status == "" {
		r.Status = models.RunCompleted
	}
	o.finalize(ctx, r)
	return stateDone{}
}

func (o *Orchestrator) fail(ctx context.Context, rc *runContext, err error) state {
	r := rc.record
	rc.err = err
	r.Status = models.RunFailed
	r.Error = err.Error()

	o.logger.Error().Err(err).Str("run_id", r.RunID).Msg("run failed")
	o.finalize(ctx, r)
	return stateDone{}
}

// finalize freezes the record and hands copies to history and observers.
// A history failure is logged; the run outcome stands.
func (o *Orchestrator) finalize(ctx context.Context, r *models.RunRecord) {
	r.CompletedAt = o.now().UTC()
	r.Metrics = metrics.Compute(r.Attempts)

	if o.history != nil {
		if err := o.history.Append(ctx, r.Clone()); err != nil {
			o.logger.Error().Err(err).Str("run_id", r.RunID).Msg("failed to append run to history")
		}
	}
	o.observer.OnRunCompleted(r.Clone())
}

func decodeOutput(candidate any) (models.GovernedOutput, error) {
	var out models.GovernedOutput
	data, err := json.Marshal(candidate)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}

// ClassifyBaseline tags a baseline response. Markup payloads, typically a
// proxy or gateway error page, are non_json; everything else is text.
func ClassifyBaseline(text string) models.ResponseType {
	t := strings.ToLower(strings.TrimSpace(text))
	if strings.HasPrefix(t, "<!doctype html") ||
		strings.HasPrefix(t, "<html") ||
		strings.HasPrefix(t, "<?xml") ||
		strings.Contains(t, "</html>") ||
		strings.Contains(t, "<body") {
		return models.ResponseNonJSON
	}
	return models.ResponseText
}

func elapsedMs(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000
}
