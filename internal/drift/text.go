package drift

import (
	"strings"
	"unicode"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

const shingleSize = 3

// OutputText flattens the comparable text of a run. Governed output uses
// the content fields in contract order; baseline runs use the raw reply.
func OutputText(r *models.RunRecord) string {
	if r == nil {
		return ""
	}
	if r.Output == nil {
		return r.RawOutput
	}
	o := r.Output
	var parts []string
	parts = append(parts, o.CanonicalAnswer...)
	parts = append(parts, o.ThreePerspectives.Optimizer...)
	parts = append(parts, o.ThreePerspectives.Skeptic...)
	parts = append(parts, o.ThreePerspectives.Operator...)
	parts = append(parts, o.UnknownsAndChecks...)
	parts = append(parts, o.NextSteps...)
	return strings.Join(parts, "\n")
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Shingles returns the set of word n-grams of text. Texts shorter than n
// words collapse to a single shingle.
func Shingles(text string, n int) map[string]struct{} {
	w := words(text)
	set := make(map[string]struct{})
	if len(w) == 0 {
		return set
	}
	if len(w) < n {
		set[strings.Join(w, " ")] = struct{}{}
		return set
	}
	for i := 0; i+n <= len(w); i++ {
		set[strings.Join(w[i:i+n], " ")] = struct{}{}
	}
	return set
}

// Jaccard is |a∩b| / |a∪b|. Two empty sets are identical.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for s := range small {
		if _, ok := large[s]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Similarity is the trigram shingle Jaccard of two texts.
func Similarity(a, b string) float64 {
	return Jaccard(Shingles(a, shingleSize), Shingles(b, shingleSize))
}
