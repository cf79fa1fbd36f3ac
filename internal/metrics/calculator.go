package metrics

import (
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/llm"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

// Compute derives latency and token totals from a run's attempts. Model
// time is billable; local repair and validation time is not. Attempts
// without provider-reported usage fall back to a character estimate, and
// the result is flagged when any estimate was used.
func Compute(attempts []models.Attempt) models.Metrics {
	var m models.Metrics

	for _, a := range attempts {
		m.ModelMs += a.ModelLatencyMs
		m.LocalMs += a.LocalLatencyMs
		m.BillableCalls++
		if a.Kind == models.AttemptRepair {
			m.RepairCalls++
		}

		in, out := a.InputTokens, a.OutputTokens
		if in == 0 && out == 0 {
			in = estimateFromChars(a.PromptChars)
			out = llm.EstimateTokens(a.RawText)
			m.TokensEstimated = true
		}
		m.InputTokens += in
		m.OutputTokens += out
	}

	m.TotalMs = m.ModelMs + m.LocalMs
	m.TotalTokens = m.InputTokens + m.OutputTokens
	if m.TotalMs > 0 {
		m.BillableShare = m.ModelMs / m.TotalMs
	}
	return m
}

func estimateFromChars(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
