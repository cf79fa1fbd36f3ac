package stream

import (
	"context"
	"fmt"

	red "github.com/povarna/generative-ai-agents/governed-runtime/internal/redis"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/stream/redis"
	"github.com/rs/zerolog"
)

// StreamConsumer pulls run requests from a message stream and executes
// them until Start's context is cancelled.
type StreamConsumer interface {
	Setup(ctx context.Context) error
	Start(ctx context.Context) error
	Stop() error
}

const ProviderRedis = "redis"

type Config struct {
	Provider string
	Redis    red.Config
	Options  redis.Options
}

// New connects to the configured broker and returns a consumer that owns
// the connection. An empty provider selects redis.
func New(ctx context.Context, cfg Config, runs redis.RunService, logger *zerolog.Logger) (StreamConsumer, error) {
	switch cfg.Provider {
	case "", ProviderRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis address required for stream consumer")
		}
		client, err := red.Connect(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		c := redis.NewConsumer(client, cfg.Options, runs, logger)
		c.OnStop(client.Close)
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported stream provider: %s", cfg.Provider)
	}
}
