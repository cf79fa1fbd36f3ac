package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/emicklei/go-restful/v3"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/api/middleware"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/contract"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/evidence"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/executor"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/history"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/repair"
	"github.com/rs/zerolog"
)

const version = "1.0.0"

type RunService interface {
	Run(ctx context.Context, req models.RunRequest) (*models.RunRecord, error)
}

type Handler struct {
	runs      RunService
	store     history.Store
	validator *contract.Validator
	logger    *zerolog.Logger
}

func NewHandler(runs RunService, store history.Store, validator *contract.Validator, logger *zerolog.Logger) *Handler {
	if validator == nil {
		validator = contract.NewValidator(nil)
	}
	return &Handler{
		runs:      runs,
		store:     store,
		validator: validator,
		logger:    logger,
	}
}

// GET /api/v1/health
func (h *Handler) Health(req *restful.Request, resp *restful.Response) {
	_ = resp.WriteHeaderAndEntity(http.StatusOK, HealthResponse{Status: "ok", Version: version})
}

// POST /api/v1/runs
// Body: RunRequest
// Returns: RunRecord
func (h *Handler) CreateRun(req *restful.Request, resp *restful.Response) {
	var runReq models.RunRequest
	if err := req.ReadEntity(&runReq); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	h.logger.Info().
		Str("mode", string(runReq.Mode)).
		Bool("grounded", runReq.Grounded).
		Msg("Start run")

	rec, err := h.runs.Run(req.Request.Context(), runReq)
	if err != nil {
		h.logger.Error().Err(err).Msg("Run failed")
		middleware.HandleError(resp, err, statusFor(err))
		return
	}

	h.logger.Info().
		Str("run_id", rec.RunID).
		Str("status", string(rec.Status)).
		Int("repairs", rec.Repairs).
		Msg("Run complete")

	_ = resp.WriteHeaderAndEntity(http.StatusOK, rec)
}

// GET /api/v1/runs/{run_id}
func (h *Handler) GetRun(req *restful.Request, resp *restful.Response) {
	rec, err := h.store.Get(req.Request.Context(), req.PathParameter("run_id"))
	if err != nil {
		middleware.HandleError(resp, err, statusFor(err))
		return
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, rec)
}

// GET /api/v1/prompts/{prompt_hash}/runs
func (h *Handler) ListPromptRuns(req *restful.Request, resp *restful.Response) {
	hash := req.PathParameter("prompt_hash")
	runs, err := h.store.ListByPrompt(req.Request.Context(), hash)
	if err != nil {
		middleware.HandleError(resp, err, statusFor(err))
		return
	}
	if runs == nil {
		runs = []*models.RunRecord{}
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, RunListResponse{PromptHash: hash, Runs: runs})
}

// GET /api/v1/prompts/{prompt_hash}/evidence
func (h *Handler) PromptEvidence(req *restful.Request, resp *restful.Response) {
	doc, err := evidence.Build(req.Request.Context(), h.store, req.PathParameter("prompt_hash"), nil)
	if err != nil {
		middleware.HandleError(resp, err, statusFor(err))
		return
	}
	if doc.Current == nil {
		middleware.HandleError(resp, history.ErrNotFound, http.StatusNotFound)
		return
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, doc)
}

// POST /api/v1/contract/validate
func (h *Handler) ValidateContract(req *restful.Request, resp *restful.Response) {
	var body ValidateRequest
	if err := req.ReadEntity(&body); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}
	result := h.validator.Validate(body.Candidate, contract.ValidationContext{
		Grounded:       body.Grounded,
		CorrectionMode: body.CorrectionMode,
		HadRepairs:     body.HadRepairs,
	})
	_ = resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// POST /api/v1/contract/repair
// Runs the local repair pass only; the model is never called.
func (h *Handler) RepairContract(req *restful.Request, resp *restful.Response) {
	var body RepairRequest
	if err := req.ReadEntity(&body); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, RepairAndValidate(h.validator, body))
}

// RepairAndValidate runs local repair, fills guessable fields and
// validates the result.
func RepairAndValidate(v *contract.Validator, body RepairRequest) RepairResponse {
	res := repair.AttemptLocalRepair(body.Raw)
	out := RepairResponse{Repair: res}
	if !res.Success {
		return out
	}

	candidate := res.Parsed
	if obj, ok := candidate.(map[string]any); ok {
		filled, synthesized := repair.EnsureRequiredFields(obj)
		candidate = filled
		out.SynthesizedFields = synthesized
		out.Repair.Parsed = filled
	}
	result := v.Validate(candidate, contract.ValidationContext{
		Grounded:       body.Grounded,
		CorrectionMode: body.CorrectionMode,
		HadRepairs:     len(out.SynthesizedFields) > 0,
	})
	out.Validation = &result
	return out
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, executor.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, executor.ErrModelInvocation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
