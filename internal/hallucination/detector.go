package hallucination

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

const (
	pointsUncited         = 2
	pointsPlaceholder     = 3
	pointsUncitedNumerics = 2
	pointsSafeMode        = 5
	pointsFailedFinal     = 3
)

var (
	urlPattern = regexp.MustCompile(`https?://[^\s"'<>()\[\]{}]+`)

	numericPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d+(?:\.\d+)?\s?%`),
		regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:percent|ms|seconds|minutes|hours|days|years|gb|mb|kb|million|billion)\b`),
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b(?:19|20)\d{2}\b`),
		regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december) \d{1,2}\b`),
	}

	placeholderSuffixes = []string{".test", ".invalid", ".example", ".localhost"}
)

// Detector scores citation integrity of a finished run. It reads the run
// only and never changes it.
type Detector struct {
	placeholders []string
}

func NewDetector(placeholderDomains []string) *Detector {
	if placeholderDomains == nil {
		placeholderDomains = config.DefaultPatterns().PlaceholderDomains
	}
	normalized := make([]string, 0, len(placeholderDomains))
	for _, d := range placeholderDomains {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(d)))
	}
	return &Detector{placeholders: normalized}
}

func (d *Detector) Analyze(r *models.RunRecord) models.HallucinationReport {
	text := freeText(r)
	textURLs := ExtractURLs(text)

	var items []models.SourceItem
	if r.Output != nil {
		items = r.Output.Sources.Items
	}
	cited := make(map[string]bool, len(items))
	for _, it := range items {
		cited[normalizeURL(it.URL)] = true
	}
	mentioned := make(map[string]bool, len(textURLs))
	for _, u := range textURLs {
		mentioned[normalizeURL(u)] = true
	}

	report := models.HallucinationReport{
		UncitedLinks:     []string{},
		UnusedSources:    []string{},
		PlaceholderLinks: []string{},
		Contributions:    []models.RiskContribution{},
	}

	for _, u := range textURLs {
		if !cited[normalizeURL(u)] {
			report.UncitedLinks = append(report.UncitedLinks, u)
		}
	}
	for _, it := range items {
		if !mentioned[normalizeURL(it.URL)] {
			report.UnusedSources = append(report.UnusedSources, it.URL)
		}
	}

	seen := make(map[string]bool)
	all := append(append([]string(nil), textURLs...), itemURLs(items)...)
	for _, u := range all {
		key := normalizeURL(u)
		if seen[key] {
			continue
		}
		seen[key] = true
		if d.IsPlaceholder(u) {
			report.PlaceholderLinks = append(report.PlaceholderLinks, u)
		}
	}

	report.NumericClaims = CountNumericClaims(text)

	add := func(reason string, points int) {
		report.Contributions = append(report.Contributions, models.RiskContribution{Reason: reason, Points: points})
		report.Score += points
	}

	if n := len(report.UncitedLinks); n > 0 {
		add(fmt.Sprintf("%d uncited link(s)", n), n*pointsUncited)
	}
	if n := len(report.PlaceholderLinks); n > 0 {
		add(fmt.Sprintf("%d placeholder link(s)", n), n*pointsPlaceholder)
	}
	if report.NumericClaims > 0 && len(items) == 0 && len(textURLs) == 0 {
		add(fmt.Sprintf("%d numeric or date claim(s) without citations", report.NumericClaims), pointsUncitedNumerics)
	}
	if r.SafeModeApplied {
		add("safe mode applied", pointsSafeMode)
	}
	if r.Repairs > 1 {
		add(fmt.Sprintf("%d model repairs", r.Repairs), r.Repairs)
	}
	if r.FinalValidation != nil && !r.FinalValidation.Passed {
		add("final validation failed", pointsFailedFinal)
	}

	report.Level = Level(report.Score)
	return report
}

// Level buckets a score: 0 LOW, 1-5 MEDIUM, above 5 HIGH.
func Level(score int) models.HallucinationLevel {
	switch {
	case score > 5:
		return models.HallucinationHigh
	case score > 0:
		return models.HallucinationMedium
	default:
		return models.HallucinationLow
	}
}

// IsPlaceholder reports whether the url points at a reserved or
// conventional placeholder host.
func (d *Detector) IsPlaceholder(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, p := range d.placeholders {
		if host == p || strings.HasSuffix(host, "."+p) {
			return true
		}
	}
	for _, s := range placeholderSuffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return host == "127.0.0.1"
}

// ExtractURLs returns every http(s) url in text in order of appearance,
// without duplicates and without trailing sentence punctuation.
func ExtractURLs(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range urlPattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;:!?")
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func CountNumericClaims(text string) int {
	stripped := urlPattern.ReplaceAllString(text, " ")
	n := 0
	for _, p := range numericPatterns {
		n += len(p.FindAllStringIndex(stripped, -1))
	}
	return n
}

func freeText(r *models.RunRecord) string {
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
	parts = append(parts, o.DiffNote...)
	return strings.Join(parts, "\n")
}

func itemURLs(items []models.SourceItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.URL)
	}
	return out
}

func normalizeURL(u string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(u)), "/.,;")
}
