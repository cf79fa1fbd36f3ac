package executor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"text/template"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/contract"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/detectors"
)

var contractTemplate = template.Must(template.New("contract").Parse(`{{.Schema}}
Grounding:
{{.Grounding}}

{{if .Correction -}}
Correction mode: the user disputes a previous answer. diff_note must contain at least one entry stating what changed and why.
{{- else -}}
diff_note may be empty unless you are correcting an earlier answer.
{{- end}}

User request:
{{.Prompt}}
`))

var repairTemplate = template.Must(template.New("repair").Parse(`Your previous response broke the output contract.

Violations:
{{range .Errors}}- {{.}}
{{end}}
Previous response:
<<<
{{.Previous}}
>>>

Return one corrected JSON object that fixes every violation. diff_note must contain at least one entry describing what you changed.

{{.Base}}`))

type contractData struct {
	Schema     string
	Grounding  string
	Correction bool
	Prompt     string
}

type repairData struct {
	Errors   []string
	Previous string
	Base     string
}

// BuildContractPrompt renders the governed prompt: schema, literal source
// notes, grounding instructions, correction flag and the user request.
func BuildContractPrompt(userPrompt string, grounding detectors.GroundingDecision, correction bool) (string, error) {
	var buf bytes.Buffer
	err := contractTemplate.Execute(&buf, contractData{
		Schema:     contract.SchemaPrompt(),
		Grounding:  grounding.Instructions(contract.NoteNoSources, contract.NoteListedSources),
		Correction: correction,
		Prompt:     strings.TrimSpace(userPrompt),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildRepairPrompt embeds the validation errors and the rejected output
// ahead of the original contract prompt.
func BuildRepairPrompt(base string, errors []string, previous string) (string, error) {
	var buf bytes.Buffer
	err := repairTemplate.Execute(&buf, repairData{
		Errors:   errors,
		Previous: previous,
		Base:     base,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PromptHash identifies a prompt across runs.
func PromptHash(prompt string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(prompt)))
	return hex.EncodeToString(sum[:])
}
