package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	red "github.com/povarna/generative-ai-agents/governed-runtime/internal/redis"
	streamredis "github.com/povarna/generative-ai-agents/governed-runtime/internal/stream/redis"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type options struct {
	raw      string
	prompt   string
	mode     string
	grounded bool
	stream   string
	count    int
}

func main() {
	var opts options
	flag.StringVar(&opts.raw, "d", "", "Inline JSON RunRequest (overrides -prompt)")
	flag.StringVar(&opts.prompt, "prompt", "", "Prompt to enqueue")
	flag.StringVar(&opts.mode, "mode", string(models.ModeGoverned), "baseline, governed or hybrid")
	flag.BoolVar(&opts.grounded, "grounded", false, "Allow external sources")
	flag.StringVar(&opts.stream, "stream", streamredis.DefaultStream, "Stream name")
	flag.IntVar(&opts.count, "n", 1, "Number of copies to enqueue")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	req, err := buildRequest(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "producer: %v\n", err)
		flag.PrintDefaults()
		os.Exit(2)
	}

	_ = godotenv.Load()
	if err := publish(context.Background(), opts.stream, req, opts.count); err != nil {
		log.Error().Err(err).Str("stream", opts.stream).Msg("publish failed")
		os.Exit(1)
	}
}

func buildRequest(opts options) (models.RunRequest, error) {
	var req models.RunRequest
	if opts.raw != "" {
		if err := json.Unmarshal([]byte(opts.raw), &req); err != nil {
			return req, fmt.Errorf("-d is not a run request: %w", err)
		}
	} else {
		req = models.RunRequest{
			Prompt:   opts.prompt,
			Mode:     models.Mode(opts.mode),
			Grounded: opts.grounded,
		}
	}
	if req.Prompt == "" {
		return req, errors.New("a prompt is required (-prompt or -d)")
	}
	if req.Mode != "" && !req.Mode.Valid() {
		return req, fmt.Errorf("unknown mode %q", req.Mode)
	}
	if opts.count < 1 {
		return req, errors.New("-n must be at least 1")
	}
	return req, nil
}

func publish(ctx context.Context, stream string, req models.RunRequest, count int) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	cfg := red.Config{
		Addr:       os.Getenv("REDIS_ADDR"),
		Password:   os.Getenv("REDIS_PASSWORD"),
		MaxRetries: 3,
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}

	client, err := red.Connect(ctx, cfg, &log.Logger)
	if err != nil {
		return err
	}
	defer client.Close()

	for i := 0; i < count; i++ {
		id, err := client.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			Values: map[string]any{streamredis.PayloadField: string(payload)},
		}).Result()
		if err != nil {
			return fmt.Errorf("xadd %s: %w", stream, err)
		}
		log.Info().
			Str("stream", stream).
			Str("id", id).
			Str("mode", string(req.Mode)).
			Bool("grounded", req.Grounded).
			Msg("run request enqueued")
	}
	return nil
}
