package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/rs/zerolog"
)

// Case is one line of a batch input file.
type Case struct {
	CaseID         string        `json:"case_id" validate:"required"`
	Prompt         string        `json:"prompt" validate:"required"`
	Grounded       bool          `json:"grounded,omitempty"`
	CorrectionMode *bool         `json:"correction_mode,omitempty"`
	Modes          []models.Mode `json:"modes,omitempty" validate:"omitempty,dive,oneof=baseline governed hybrid"`
}

// RunModes returns the modes to execute, in the order given. An empty list
// means a single governed run.
func (c Case) RunModes() []models.Mode {
	if len(c.Modes) == 0 {
		return []models.Mode{models.ModeGoverned}
	}
	return c.Modes
}

type InputRecord struct {
	LineNumber int
	Case       Case
	Error      error
}

const maxLineBytes = 4 * 1024 * 1024

var validate = validator.New()

type Reader struct {
	r      io.Reader
	logger *zerolog.Logger
}

func NewReader(r io.Reader, logger *zerolog.Logger) *Reader {
	return &Reader{r: r, logger: logger}
}

// ReadAll streams every non-blank line as an InputRecord. Lines that fail
// to parse or validate are still emitted with Error set. The channel is
// closed when the input ends or ctx is done.
func (r *Reader) ReadAll(ctx context.Context) <-chan InputRecord {
	out := make(chan InputRecord)

	go func() {
		defer close(out)

		scanner := bufio.NewScanner(r.r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}

			record := InputRecord{LineNumber: line}
			if err := json.Unmarshal([]byte(text), &record.Case); err != nil {
				record.Error = fmt.Errorf("line %d: invalid JSON: %w", line, err)
			} else if err := validate.Struct(record.Case); err != nil {
				record.Error = fmt.Errorf("line %d: invalid case: %w", line, err)
			}

			select {
			case out <- record:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			r.logger.Error().Err(err).Int("line", line).Msg("Failed to read batch input")
		}
	}()

	return out
}
