package repair

import (
	"fmt"
	"strings"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/contract"
)

const defaultRiskLevel = "medium"

// EnsureRequiredFields fills fields whose absence carries no content:
// unknowns_and_checks, diff_note and the risk block. It never invents an
// answer, perspectives, next steps or sources. When anything is filled a
// diff_note entry naming the fields is appended. The input map is not
// modified.
func EnsureRequiredFields(obj map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(obj)+3)
	for k, v := range obj {
		out[k] = v
	}

	var synthesized []string

	if _, ok := out[contract.FieldUnknownsAndChecks]; !ok {
		out[contract.FieldUnknownsAndChecks] = []any{}
		synthesized = append(synthesized, contract.FieldUnknownsAndChecks)
	}

	switch risk := out[contract.FieldRisk].(type) {
	case nil:
		if _, present := out[contract.FieldRisk]; !present {
			out[contract.FieldRisk] = map[string]any{
				"level":             defaultRiskLevel,
				"safe_mode_applied": false,
			}
			synthesized = append(synthesized, contract.FieldRisk)
		}
	case map[string]any:
		filled := make(map[string]any, len(risk)+2)
		for k, v := range risk {
			filled[k] = v
		}
		if _, ok := filled["level"]; !ok {
			filled["level"] = defaultRiskLevel
			synthesized = append(synthesized, "risk.level")
		}
		if _, ok := filled["safe_mode_applied"]; !ok {
			filled["safe_mode_applied"] = false
			synthesized = append(synthesized, "risk.safe_mode_applied")
		}
		out[contract.FieldRisk] = filled
	}

	if _, ok := out[contract.FieldDiffNote]; !ok {
		out[contract.FieldDiffNote] = []any{}
		synthesized = append(synthesized, contract.FieldDiffNote)
	}

	if len(synthesized) > 0 {
		if notes, ok := out[contract.FieldDiffNote].([]any); ok {
			note := fmt.Sprintf("Locally filled missing fields: %s.", strings.Join(synthesized, ", "))
			out[contract.FieldDiffNote] = append(append([]any(nil), notes...), note)
		}
	}

	return out, synthesized
}
