package repair

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Names of the local transforms, recorded in Result.RepairsApplied.
const (
	StripCodeFences      = "strip_code_fences"
	ExtractJSONObject    = "extract_json_object"
	RemoveTrailingCommas = "remove_trailing_commas"
	ConvertSingleQuotes  = "convert_single_quotes"
)

// Result describes one local repair pass over raw model text.
type Result struct {
	Success        bool     `json:"success"`
	RepairedText   string   `json:"repaired_text"`
	Parsed         any      `json:"parsed"`
	RepairsApplied []string `json:"repairs_applied"`
	ParseError     string   `json:"parse_error,omitempty"`
}

type transform struct {
	name  string
	apply func(string) (string, bool)
}

// transforms run in this order; each one only when it changes the text.
var transforms = []transform{
	{StripCodeFences, stripCodeFences},
	{ExtractJSONObject, extractJSONObject},
	{RemoveTrailingCommas, removeTrailingCommas},
	{ConvertSingleQuotes, convertSingleQuotes},
}

// AttemptLocalRepair tries to turn raw model text into parseable JSON
// without calling the model. It parses before the first transform and
// after each applied transform, stopping at the first success.
func AttemptLocalRepair(raw string) Result {
	text := strings.TrimSpace(raw)
	res := Result{RepairsApplied: []string{}}

	parsed, err := parse(text)
	if err == nil {
		res.Success = true
		res.RepairedText = text
		res.Parsed = parsed
		return res
	}

	for _, t := range transforms {
		next, changed := t.apply(text)
		if !changed {
			continue
		}
		text = strings.TrimSpace(next)
		res.RepairsApplied = append(res.RepairsApplied, t.name)

		parsed, err = parse(text)
		if err == nil {
			res.Success = true
			res.RepairedText = text
			res.Parsed = parsed
			return res
		}
	}

	res.RepairedText = text
	res.ParseError = err.Error()
	return res
}

func parse(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \t]*\r?\n?(.*?)```")

func stripCodeFences(s string) (string, bool) {
	if !strings.Contains(s, "```") {
		return s, false
	}
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	// Unterminated fence: drop the opening marker line.
	idx := strings.Index(s, "```")
	rest := s[idx+3:]
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[nl+1:]
	}
	return rest, true
}

func extractJSONObject(s string) (string, bool) {
	span, ok := firstBalancedObject(s)
	if !ok || span == s {
		return s, false
	}
	return span, true
}

// firstBalancedObject returns the first top-level {...} span. Braces inside
// double-quoted strings, including escaped quotes, are ignored.
func firstBalancedObject(s string) (string, bool) {
	depth := 0
	start := -1
	inString := false
	escape := false

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

func removeTrailingCommas(s string) (string, bool) {
	if !trailingCommaPattern.MatchString(s) {
		return s, false
	}
	return trailingCommaPattern.ReplaceAllString(s, "$1"), true
}

// singleQuotedToken matches a single-quoted key or value sitting between
// JSON punctuation. It is a conservative regex, not a lexer: apostrophes
// inside double-quoted strings are left alone because they are never
// directly preceded by punctuation and followed by a delimiter.
var singleQuotedToken = regexp.MustCompile(`([{,\[:]\s*)'([^'\n]*)'(\s*[:,}\]])`)

func convertSingleQuotes(s string) (string, bool) {
	if !strings.Contains(s, "'") {
		return s, false
	}

	out := s
	// Adjacent tokens share a delimiter, so a single pass can skip every
	// other one.
	for i := 0; i < 8; i++ {
		next := singleQuotedToken.ReplaceAllStringFunc(out, func(m string) string {
			parts := singleQuotedToken.FindStringSubmatch(m)
			inner := strings.ReplaceAll(parts[2], `"`, `\"`)
			return parts[1] + `"` + inner + `"` + parts[3]
		})
		if next == out {
			break
		}
		out = next
	}
	return out, out != s
}
