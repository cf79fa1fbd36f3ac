package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/rs/zerolog"
)

const (
	FormatJSONL   = "jsonl"
	FormatSummary = "summary"
)

type Writer interface {
	Write(result CaseResult) error
	Close() error
}

func NewWriter(w io.Writer, format string, logger *zerolog.Logger) (Writer, error) {
	switch format {
	case FormatJSONL:
		return &jsonlWriter{enc: json.NewEncoder(w)}, nil
	case FormatSummary:
		return &summaryWriter{w: w, summary: newSummary()}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

type jsonlWriter struct {
	enc *json.Encoder
}

func (j *jsonlWriter) Write(result CaseResult) error {
	return j.enc.Encode(result)
}

func (j *jsonlWriter) Close() error { return nil }

type ModeSummary struct {
	Runs          int     `json:"runs"`
	Errors        int     `json:"errors"`
	Passed        int     `json:"passed"`
	SafeMode      int     `json:"safe_mode"`
	Repairs       int     `json:"repairs"`
	BillableCalls int     `json:"billable_calls"`
	AvgTotalMs    float64 `json:"avg_total_ms"`
	totalMs       float64
}

// Summary aggregates a whole batch per mode.
type Summary struct {
	Cases       int                          `json:"cases"`
	FailedCases int                          `json:"failed_cases"`
	Modes       map[models.Mode]*ModeSummary `json:"modes"`
}

func newSummary() *Summary {
	return &Summary{Modes: make(map[models.Mode]*ModeSummary)}
}

// Add folds one case into the summary.
func (s *Summary) Add(result CaseResult) {
	s.Cases++
	if result.Failed() {
		s.FailedCases++
	}
	for _, r := range result.Results {
		m, ok := s.Modes[r.Mode]
		if !ok {
			m = &ModeSummary{}
			s.Modes[r.Mode] = m
		}
		m.Runs++
		if r.Error != "" || r.Record == nil {
			m.Errors++
			continue
		}
		rec := r.Record
		if rec.FinalValidation != nil && rec.FinalValidation.Passed {
			m.Passed++
		}
		if rec.SafeModeApplied {
			m.SafeMode++
		}
		m.Repairs += rec.Repairs
		m.BillableCalls += rec.Metrics.BillableCalls
		m.totalMs += rec.Metrics.TotalMs
		m.AvgTotalMs = m.totalMs / float64(m.Runs-m.Errors)
	}
}

// SortedModes returns the modes present in the summary in name order.
func (s *Summary) SortedModes() []models.Mode {
	modes := make([]models.Mode, 0, len(s.Modes))
	for m := range s.Modes {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

type summaryWriter struct {
	w       io.Writer
	summary *Summary
}

func (s *summaryWriter) Write(result CaseResult) error {
	s.summary.Add(result)
	return nil
}

func (s *summaryWriter) Close() error {
	enc := json.NewEncoder(s.w)
	enc.SetIndent("", "  ")
	return enc.Encode(s.summary)
}
