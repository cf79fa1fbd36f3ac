package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	red "github.com/povarna/generative-ai-agents/governed-runtime/internal/redis"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/setup"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/setup/logger"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/stream"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/stream/redis"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		os.Stderr.WriteString("No .env file found\n")
	}

	cfg := setup.LoadConfig()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = logger.New(cfg.LogLevel)
	appLogger := log.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	deps, err := setup.Wire(ctx, cfg, &appLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer deps.Close()

	batch, _ := strconv.ParseInt(os.Getenv("RUNS_BATCH_SIZE"), 10, 64)
	streamCfg := stream.Config{
		Provider: os.Getenv("STREAM_PROVIDER"),
		Redis: red.Config{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			MaxRetries: cfg.RedisRetries,
		},
		Options: redis.Options{
			Stream:    os.Getenv("RUNS_STREAM"),
			Group:     os.Getenv("RUNS_GROUP"),
			Consumer:  os.Getenv("HOSTNAME"),
			BatchSize: batch,
		},
	}

	consumer, err := stream.New(ctx, streamCfg, deps.Runner, &appLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create stream consumer")
	}
	defer func() {
		if err := consumer.Stop(); err != nil {
			appLogger.Error().Err(err).Msg("Failed to stop consumer")
		}
	}()

	if err := consumer.Setup(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to setup consumer")
	}

	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error().Err(err).Msg("Consumer stopped with error")
		}
	}()

	<-ctx.Done()
	appLogger.Info().Msg("Shutting down...")
}
