package batch

import (
	"context"
	"time"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type RunService interface {
	Run(ctx context.Context, req models.RunRequest) (*models.RunRecord, error)
}

// ModeResult is the outcome of one mode of one case. Record may still be
// set when Error is, holding the failed run.
type ModeResult struct {
	Mode   models.Mode       `json:"mode"`
	Record *models.RunRecord `json:"record,omitempty"`
	Error  string            `json:"error,omitempty"`
}

type CaseResult struct {
	CaseID     string       `json:"case_id"`
	LineNumber int          `json:"line_number"`
	Results    []ModeResult `json:"results"`
	Error      string       `json:"error,omitempty"`
	DurationMs float64      `json:"duration_ms"`
}

// Failed reports whether the case could not be read or any mode errored.
func (c CaseResult) Failed() bool {
	if c.Error != "" {
		return true
	}
	for _, r := range c.Results {
		if r.Error != "" {
			return true
		}
	}
	return false
}

type Processor struct {
	runs    RunService
	workers int
	logger  *zerolog.Logger
}

func NewProcessor(runs RunService, workers int, logger *zerolog.Logger) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{runs: runs, workers: workers, logger: logger}
}

// Process runs cases concurrently, at most workers at a time. The modes of
// a single case run sequentially so later modes see earlier ones in
// history. Results arrive in completion order.
func (p *Processor) Process(ctx context.Context, records []InputRecord) <-chan CaseResult {
	out := make(chan CaseResult, p.workers)

	go func() {
		defer close(out)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.workers)

		for _, record := range records {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				result := p.processCase(gctx, record)
				select {
				case out <- result:
				case <-gctx.Done():
				}
				return nil
			})
		}

		_ = g.Wait()
	}()

	return out
}

func (p *Processor) processCase(ctx context.Context, record InputRecord) CaseResult {
	start := time.Now()
	result := CaseResult{CaseID: record.Case.CaseID, LineNumber: record.LineNumber}

	if record.Error != nil {
		result.Error = record.Error.Error()
		return result
	}

	for _, mode := range record.Case.RunModes() {
		rec, err := p.runs.Run(ctx, models.RunRequest{
			Prompt:         record.Case.Prompt,
			Mode:           mode,
			Grounded:       record.Case.Grounded,
			CorrectionMode: record.Case.CorrectionMode,
		})
		if err != nil {
			p.logger.Error().
				Err(err).
				Str("case_id", record.Case.CaseID).
				Str("mode", string(mode)).
				Msg("Case run failed")
			result.Results = append(result.Results, ModeResult{Mode: mode, Record: rec, Error: err.Error()})
			continue
		}
		result.Results = append(result.Results, ModeResult{Mode: mode, Record: rec})
	}

	result.DurationMs = float64(time.Since(start).Microseconds()) / 1000
	return result
}
