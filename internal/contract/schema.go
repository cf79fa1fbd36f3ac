package contract

import (
	"fmt"
	"strings"
)

// Literal source notes. They are compared byte for byte.
const (
	NoteNoSources     = "Sources: None (no external sources consulted)."
	NoteListedSources = "Sources: See listed sources."
)

const (
	FieldCanonicalAnswer   = "canonical_answer"
	FieldThreePerspectives = "three_perspectives"
	FieldUnknownsAndChecks = "unknowns_and_checks"
	FieldNextSteps         = "next_steps"
	FieldSources           = "sources"
	FieldRisk              = "risk"
	FieldDiffNote          = "diff_note"
)

// RequiredFields lists the top-level keys in validation order.
var RequiredFields = []string{
	FieldCanonicalAnswer,
	FieldThreePerspectives,
	FieldUnknownsAndChecks,
	FieldNextSteps,
	FieldSources,
	FieldRisk,
	FieldDiffNote,
}

// PerspectiveRoles lists the roles three_perspectives must carry.
var PerspectiveRoles = []string{"optimizer", "skeptic", "operator"}

var RiskLevels = []string{"low", "medium", "high"}

func isRiskLevel(s string) bool {
	for _, l := range RiskLevels {
		if s == l {
			return true
		}
	}
	return false
}

// schemaExample is embedded verbatim in every governed prompt.
const schemaExample = `{
  "canonical_answer": ["<direct answer, one statement per line>"],
  "three_perspectives": {
    "optimizer": ["<best case view>"],
    "skeptic": ["<what could be wrong>"],
    "operator": ["<how to run it in practice>"]
  },
  "unknowns_and_checks": ["<open question or verification step>"],
  "next_steps": ["<concrete action>"],
  "sources": {"used": false, "items": [], "note": "%s"},
  "risk": {"level": "low|medium|high", "safe_mode_applied": false},
  "diff_note": []
}`

// SchemaPrompt renders the contract section shared by the initial and the
// repair prompts.
func SchemaPrompt() string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else. No markdown fences, no commentary.\n")
	b.WriteString("The object must match this shape exactly:\n")
	fmt.Fprintf(&b, schemaExample, NoteNoSources)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- canonical_answer, next_steps and every three_perspectives role must be non-empty arrays of non-empty strings.\n")
	b.WriteString("- unknowns_and_checks is an array of strings and may be empty.\n")
	fmt.Fprintf(&b, "- When sources.used is false, sources.items is empty and sources.note is exactly %q.\n", NoteNoSources)
	fmt.Fprintf(&b, "- When sources.used is true, sources.items lists at least one {\"title\", \"url\"} with an http(s) url and sources.note is exactly %q.\n", NoteListedSources)
	b.WriteString("- risk.level is one of low, medium, high. risk.safe_mode_applied is false.\n")
	b.WriteString("- Do not narrate your process and do not claim personal certainty.\n")
	return b.String()
}
