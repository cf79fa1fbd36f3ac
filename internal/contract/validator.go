package contract

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/detectors"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

// ValidationContext carries the run facts that change what the contract
// requires.
type ValidationContext struct {
	Grounded       bool `json:"grounded"`
	CorrectionMode bool `json:"correction_mode"`
	HadRepairs     bool `json:"had_repairs"`
}

// Validator checks candidates against the governed output contract. It
// has no side effects and is safe for concurrent use.
type Validator struct {
	narration *detectors.NarrationDetector
}

func NewValidator(narration *detectors.NarrationDetector) *Validator {
	if narration == nil {
		narration = detectors.DefaultNarrationDetector()
	}
	return &Validator{narration: narration}
}

// Validate runs every check in order and collects all violations. The only
// check that stops early is the object check, since nothing else can be
// inspected without it.
func (v *Validator) Validate(candidate any, vc ValidationContext) models.ValidationResult {
	obj, ok := candidate.(map[string]any)
	if !ok {
		return result([]string{"candidate must be a JSON object"})
	}

	var errs []string

	for _, field := range RequiredFields {
		if _, present := obj[field]; !present {
			errs = append(errs, "missing required field: "+field)
		}
	}

	if raw, ok := obj[FieldCanonicalAnswer]; ok {
		errs = append(errs, checkStringArray(FieldCanonicalAnswer, raw, true)...)
	}

	if raw, ok := obj[FieldThreePerspectives]; ok {
		errs = append(errs, checkPerspectives(raw)...)
	}

	if raw, ok := obj[FieldUnknownsAndChecks]; ok {
		errs = append(errs, checkStringArray(FieldUnknownsAndChecks, raw, false)...)
	}
	if raw, ok := obj[FieldNextSteps]; ok {
		errs = append(errs, checkStringArray(FieldNextSteps, raw, true)...)
	}

	if raw, ok := obj[FieldSources]; ok {
		errs = append(errs, checkSources(raw, vc.Grounded)...)
	}

	if raw, ok := obj[FieldRisk]; ok {
		errs = append(errs, checkRisk(raw)...)
	}

	if raw, ok := obj[FieldDiffNote]; ok {
		required := vc.CorrectionMode || vc.HadRepairs
		diffErrs := checkStringArray(FieldDiffNote, raw, false)
		errs = append(errs, diffErrs...)
		if required && len(diffErrs) == 0 {
			if items, _ := raw.([]any); len(items) == 0 {
				errs = append(errs, "diff_note must not be empty in correction mode or after a repair")
			}
		}
	}

	errs = append(errs, v.narrationErrors(obj)...)

	return result(errs)
}

// ValidateOutput validates a typed output by round-tripping it through
// its wire form.
func (v *Validator) ValidateOutput(out models.GovernedOutput, vc ValidationContext) models.ValidationResult {
	data, err := json.Marshal(out)
	if err != nil {
		return result([]string{fmt.Sprintf("candidate could not be serialized: %v", err)})
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return result([]string{fmt.Sprintf("candidate could not be serialized: %v", err)})
	}
	return v.Validate(obj, vc)
}

func (v *Validator) narrationErrors(obj map[string]any) []string {
	data, err := json.Marshal(obj)
	if err != nil {
		return []string{fmt.Sprintf("candidate could not be serialized: %v", err)}
	}

	var errs []string
	for _, m := range v.narration.Scan(string(data)) {
		errs = append(errs, fmt.Sprintf("narration detected (%s): pattern %s matched", m.Label, m.Pattern))
	}
	return errs
}

func result(errs []string) models.ValidationResult {
	if errs == nil {
		errs = []string{}
	}
	return models.ValidationResult{
		Passed:     len(errs) == 0,
		Errors:     errs,
		ErrorCount: len(errs),
	}
}

func checkStringArray(path string, raw any, nonEmpty bool) []string {
	items, ok := raw.([]any)
	if !ok {
		return []string{path + " must be an array of strings"}
	}
	if nonEmpty && len(items) == 0 {
		return []string{path + " must not be empty"}
	}

	var errs []string
	for i, item := range items {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Sprintf("%s[%d] must be a non-empty string", path, i))
		}
	}
	return errs
}

func checkPerspectives(raw any) []string {
	obj, ok := raw.(map[string]any)
	if !ok {
		return []string{FieldThreePerspectives + " must be an object"}
	}

	var errs []string
	for _, role := range PerspectiveRoles {
		path := FieldThreePerspectives + "." + role
		v, present := obj[role]
		if !present {
			errs = append(errs, path+" is required")
			continue
		}
		errs = append(errs, checkStringArray(path, v, true)...)
	}
	return errs
}

// checkSources enforces the note/items pairing. Without grounding the
// model may not claim sources at all.
func checkSources(raw any, grounded bool) []string {
	obj, ok := raw.(map[string]any)
	if !ok {
		return []string{FieldSources + " must be an object"}
	}

	var errs []string

	used, usedOK := obj["used"].(bool)
	if !usedOK {
		errs = append(errs, "sources.used must be a boolean")
	}

	items, itemsOK := obj["items"].([]any)
	if !itemsOK {
		errs = append(errs, "sources.items must be an array")
	}

	note, noteOK := obj["note"].(string)
	if !noteOK {
		errs = append(errs, "sources.note must be a string")
	}

	if !usedOK {
		return errs
	}

	if used {
		if !grounded {
			errs = append(errs, "sources.used must be false when grounding is disabled")
		}
		if noteOK && note != NoteListedSources {
			errs = append(errs, fmt.Sprintf("sources.note must be exactly %q when sources.used is true", NoteListedSources))
		}
		if itemsOK && len(items) == 0 {
			errs = append(errs, "sources.items must not be empty when sources.used is true")
		}
		if itemsOK {
			errs = append(errs, checkSourceItems(items)...)
		}
		return errs
	}

	if noteOK && note != NoteNoSources {
		errs = append(errs, fmt.Sprintf("sources.note must be exactly %q when sources.used is false", NoteNoSources))
	}
	if itemsOK && len(items) > 0 {
		errs = append(errs, "sources.items must be empty when sources.used is false")
	}
	return errs
}

func checkSourceItems(items []any) []string {
	var errs []string
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("sources.items[%d] must be an object", i))
			continue
		}
		if title, ok := item["title"].(string); !ok || strings.TrimSpace(title) == "" {
			errs = append(errs, fmt.Sprintf("sources.items[%d].title must be a non-empty string", i))
		}
		if u, ok := item["url"].(string); !ok || !IsHTTPURL(u) {
			errs = append(errs, fmt.Sprintf("sources.items[%d].url must be a well-formed http(s) URL", i))
		}
	}
	return errs
}

// IsHTTPURL reports whether s is an absolute http or https URL with a host.
func IsHTTPURL(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

func checkRisk(raw any) []string {
	obj, ok := raw.(map[string]any)
	if !ok {
		return []string{FieldRisk + " must be an object"}
	}

	var errs []string
	if level, ok := obj["level"].(string); !ok || !isRiskLevel(level) {
		errs = append(errs, "risk.level must be one of low, medium, high")
	}
	if _, ok := obj["safe_mode_applied"].(bool); !ok {
		errs = append(errs, "risk.safe_mode_applied must be a boolean")
	}
	return errs
}
