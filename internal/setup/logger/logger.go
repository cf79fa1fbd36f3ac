package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a structured JSON logger on stdout.
func New(level string) zerolog.Logger {
	return build(os.Stdout, level).Caller().Logger()
}

// NewConsole builds a human readable logger on stderr, for binaries whose
// stdout carries data.
func NewConsole(level string) zerolog.Logger {
	return build(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, level).Logger()
}

func build(w io.Writer, level string) zerolog.Context {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp()
}
