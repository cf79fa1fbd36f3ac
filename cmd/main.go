package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/evidence"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/setup"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/setup/logger"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	prompt := flag.String("prompt", "", "Prompt to execute")
	mode := flag.String("mode", string(models.ModeGoverned), "Run mode: baseline, governed or hybrid")
	grounded := flag.Bool("grounded", false, "Allow the model to consult external sources")
	evidencePath := flag.String("evidence", "", "Write the evidence document for the prompt to this file")
	flag.Parse()

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "Usage: governed -prompt '<text>' [-mode governed] [-grounded] [-evidence out.json]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg := setup.LoadConfig()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = logger.NewConsole(cfg.LogLevel)
	appLogger := log.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, &appLogger, models.RunRequest{
		Prompt:   *prompt,
		Mode:     models.Mode(*mode),
		Grounded: *grounded,
	}, *evidencePath); err != nil {
		appLogger.Error().Err(err).Msg("Run failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *setup.Config, appLogger *zerolog.Logger, req models.RunRequest, evidencePath string) error {
	deps, err := setup.Wire(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to wire dependencies: %w", err)
	}
	defer deps.Close()

	rec, err := deps.Runner.Run(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return err
	}

	if evidencePath == "" {
		return nil
	}

	doc, err := evidence.Build(ctx, deps.Store, rec.PromptHash, rec)
	if err != nil {
		return err
	}
	f, err := os.Create(evidencePath)
	if err != nil {
		return fmt.Errorf("failed to create evidence file: %w", err)
	}
	defer f.Close()

	if err := doc.Write(f); err != nil {
		return fmt.Errorf("failed to write evidence: %w", err)
	}
	appLogger.Info().Str("file", evidencePath).Str("prompt_hash", rec.PromptHash).Msg("Evidence written")
	return nil
}
