package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/llm"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/repair"
	"github.com/rs/zerolog"
)

type auditResponse struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// LLMAuditor scores a run with one templated model prompt. Every failure
// degrades to a zero score with a reason.
type LLMAuditor struct {
	name           string
	promptTemplate *template.Template
	modelConfig    config.ModelConfig
	llmClient      llm.LLMClient
	logger         *zerolog.Logger
}

func NewLLMAuditor(cfg config.AuditorConfiguration, llmClient llm.LLMClient, logger *zerolog.Logger) (*LLMAuditor, error) {
	tmpl, err := template.New(cfg.Name).Option("missingkey=error").Parse(cfg.Prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template for auditor %s: %w", cfg.Name, err)
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("auditor %s has nil model config", cfg.Name)
	}

	return &LLMAuditor{
		name:           cfg.Name,
		promptTemplate: tmpl,
		modelConfig:    *cfg.Model,
		llmClient:      llmClient,
		logger:         logger,
	}, nil
}

func (a *LLMAuditor) Name() string {
	return a.name
}

func (a *LLMAuditor) Audit(ctx context.Context, subject Subject) models.AuditFinding {
	start := time.Now()
	finding := models.AuditFinding{Name: a.name}
	done := func(reason string) models.AuditFinding {
		if reason != "" {
			finding.Reason = reason
		}
		finding.DurationMs = float64(time.Since(start).Microseconds()) / 1000
		return finding
	}

	var buf bytes.Buffer
	if err := a.promptTemplate.Execute(&buf, subject); err != nil {
		a.logger.Error().Err(err).Str("auditor", a.name).Msg("failed to build prompt from template")
		return done(fmt.Sprintf("Failed to build prompt: %v", err))
	}

	req := llm.LLMRequest{
		Prompt:      buf.String(),
		MaxTokens:   a.modelConfig.MaxTokens,
		Temperature: a.modelConfig.Temperature,
	}
	var (
		resp *llm.LLMResponse
		err  error
	)
	if a.modelConfig.Retry {
		resp, err = a.llmClient.InvokeModelWithRetry(ctx, req)
	} else {
		resp, err = a.llmClient.InvokeModel(ctx, req)
	}
	if err != nil {
		a.logger.Error().Err(err).Str("auditor", a.name).Msg("LLM call failed")
		return done("Failed to call LLM")
	}
	if resp == nil {
		return done("Empty LLM response")
	}

	parsed, err := decodeAuditResponse(resp.Content)
	if err != nil {
		a.logger.Error().Err(err).Str("auditor", a.name).Str("content", resp.Content).Msg("failed to deserialize LLM response")
		return done("Failed to deserialize LLM response")
	}
	if parsed.Score == 0 && parsed.Reason == "" {
		return done("Invalid LLM response: missing score and reason")
	}
	if parsed.Score < 0 || parsed.Score > 1 {
		return done(fmt.Sprintf("Invalid LLM response: score %f out of range [0.0, 1.0]", parsed.Score))
	}

	finding.Score = parsed.Score
	finding.Reason = parsed.Reason
	finding = done("")

	a.logger.Debug().
		Str("auditor", a.name).
		Float64("score", finding.Score).
		Float64("duration_ms", finding.DurationMs).
		Msg("auditor completed")
	return finding
}

// decodeAuditResponse tolerates the same formatting noise as contract
// output: code fences, prose around the object, trailing commas.
func decodeAuditResponse(content string) (auditResponse, error) {
	var out auditResponse
	res := repair.AttemptLocalRepair(content)
	if !res.Success {
		return out, fmt.Errorf("unparseable auditor response: %s", res.ParseError)
	}
	err := json.Unmarshal([]byte(res.RepairedText), &out)
	return out, err
}
