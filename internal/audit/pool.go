package audit

import (
	"fmt"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/llm"
	"github.com/rs/zerolog"
)

// BuildFromConfig creates one LLMAuditor per enabled auditor, in file order.
func BuildFromConfig(cfg *config.AuditorsConfig, llmClient llm.LLMClient, logger *zerolog.Logger) ([]Auditor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("auditors config is nil")
	}

	var auditors []Auditor
	for _, ac := range cfg.Auditors.Evaluators {
		if !ac.Enabled {
			logger.Info().Str("auditor", ac.Name).Msg("auditor disabled in config, skipping")
			continue
		}
		a, err := NewLLMAuditor(ac, llmClient, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create auditor %s: %w", ac.Name, err)
		}
		auditors = append(auditors, a)
	}

	if len(auditors) == 0 {
		return nil, fmt.Errorf("no enabled auditors found in config")
	}
	return auditors, nil
}
