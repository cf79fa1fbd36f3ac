package repair

import (
	"reflect"
	"testing"
)

func TestAttemptLocalRepair(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		success bool
		repairs []string
		want    any
	}{
		{
			name:    "already valid",
			raw:     `  {"a": 1}  `,
			success: true,
			repairs: []string{},
			want:    map[string]any{"a": 1.0},
		},
		{
			name:    "code fence",
			raw:     "```json\n{\"a\": \"b\"}\n```",
			success: true,
			repairs: []string{StripCodeFences},
			want:    map[string]any{"a": "b"},
		},
		{
			name:    "prose around object",
			raw:     `Here is the answer: {"a": [1, 2]} Hope that helps.`,
			success: true,
			repairs: []string{ExtractJSONObject},
			want:    map[string]any{"a": []any{1.0, 2.0}},
		},
		{
			name:    "braces inside strings",
			raw:     `Note {"a": "}{", "b": "say \"{hi}\""} end`,
			success: true,
			repairs: []string{ExtractJSONObject},
			want:    map[string]any{"a": "}{", "b": `say "{hi}"`},
		},
		{
			name:    "trailing commas",
			raw:     `{"a": [1, 2,], "b": true,}`,
			success: true,
			repairs: []string{RemoveTrailingCommas},
			want:    map[string]any{"a": []any{1.0, 2.0}, "b": true},
		},
		{
			name:    "single quotes",
			raw:     `{'a': 'b', 'c': ['x', 'y']}`,
			success: true,
			repairs: []string{ConvertSingleQuotes},
			want:    map[string]any{"a": "b", "c": []any{"x", "y"}},
		},
		{
			name:    "every step in order",
			raw:     "Sure!\n```json\n{'a': 1,}\n```",
			success: true,
			repairs: []string{StripCodeFences, RemoveTrailingCommas, ConvertSingleQuotes},
			want:    map[string]any{"a": 1.0},
		},
		{
			name:    "top level array parses",
			raw:     `[1, 2]`,
			success: true,
			repairs: []string{},
			want:    []any{1.0, 2.0},
		},
		{
			name:    "not json at all",
			raw:     "The answer is to add an index.",
			success: false,
			repairs: []string{},
		},
		{
			name:    "truncated object",
			raw:     `{"a": [1, 2`,
			success: false,
			repairs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := AttemptLocalRepair(tt.raw)

			if res.Success != tt.success {
				t.Fatalf("expected success=%v, got %+v", tt.success, res)
			}
			if !reflect.DeepEqual(res.RepairsApplied, tt.repairs) {
				t.Errorf("expected repairs %v, got %v", tt.repairs, res.RepairsApplied)
			}
			if tt.success {
				if !reflect.DeepEqual(res.Parsed, tt.want) {
					t.Errorf("expected parsed %#v, got %#v", tt.want, res.Parsed)
				}
				if res.ParseError != "" {
					t.Errorf("expected no parse error, got %s", res.ParseError)
				}
			} else {
				if res.Parsed != nil {
					t.Errorf("expected nil parsed, got %#v", res.Parsed)
				}
				if res.ParseError == "" {
					t.Error("expected a parse error")
				}
			}
		})
	}
}

func TestConvertSingleQuotes_LeavesApostrophesInStrings(t *testing.T) {
	in := `{"a": "it's fine"}`
	out, changed := convertSingleQuotes(in)
	if changed || out != in {
		t.Errorf("expected no change, got %q", out)
	}
}

func TestFirstBalancedObject_Unbalanced(t *testing.T) {
	if _, ok := firstBalancedObject(`{"a": {"b": 1}`); ok {
		t.Error("expected no balanced object")
	}
}
