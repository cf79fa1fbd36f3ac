package setup

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/option"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/audit"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/contract"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/detectors"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/drift"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/events"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/executor"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/hallucination"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/history"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/llm"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/llm/bedrock"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/llm/gemini"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/llm/gpt"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/redis"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/runner"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Dependencies struct {
	Orchestrator *executor.Orchestrator
	Runner       *runner.Runner
	Store        history.Store
	Validator    *contract.Validator
	Detectors    *detectors.Detectors
	Settings     *config.FileSettings
	Redis        *goredis.Client
	Logger       *zerolog.Logger

	closers []func()
}

// Close releases every connection opened by Wire, newest first.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func Wire(ctx context.Context, cfg *Config, logger *zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: logger, Settings: config.NewFileSettings()}

	settings, err := deps.Settings.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	patterns, err := config.LoadPatterns()
	if err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}
	det, err := detectors.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to compile patterns: %w", err)
	}
	deps.Detectors = det
	deps.Validator = contract.NewValidator(det.Narration)

	llmClient, err := createLLMClient(ctx, cfg.DefaultProvider, cfg.ModelID(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.DefaultProvider, err)
	}
	invoker := llm.NewInvoker(llmClient, cfg.ModelID(), cfg.MaxTokens, cfg.Temperature)

	store, err := deps.createStore(ctx, cfg)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Store = store

	observer, err := deps.createObserver(ctx, cfg)
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.Orchestrator = executor.NewOrchestrator(invoker, store, deps.Settings, det, observer, logger)

	auditPipeline := createAuditPipeline(ctx, cfg, settings, llmClient, logger)
	deps.Runner = runner.New(
		deps.Orchestrator,
		store,
		deps.Settings,
		drift.NewScorer(det.Authority),
		hallucination.NewDetector(det.PlaceholderDomains),
		auditPipeline,
		logger,
	)

	logger.Info().
		Str("provider", cfg.DefaultProvider).
		Str("model", cfg.ModelID()).
		Str("history", cfg.HistoryBackend).
		Int("repair_cap", settings.RepairCap).
		Bool("audit", settings.Audit.Enabled).
		Msg("governed runtime wired")

	return deps, nil
}

func (d *Dependencies) redisClient(ctx context.Context, cfg *Config) (*goredis.Client, error) {
	if d.Redis != nil {
		return d.Redis, nil
	}
	client, err := redis.Connect(ctx, redis.Config{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		MaxRetries: cfg.RedisRetries,
	}, d.Logger)
	if err != nil {
		return nil, err
	}
	d.Redis = client
	d.closers = append(d.closers, func() { _ = client.Close() })
	return client, nil
}

func (d *Dependencies) createStore(ctx context.Context, cfg *Config) (history.Store, error) {
	switch cfg.HistoryBackend {
	case HistoryRedis:
		client, err := d.redisClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect history store: %w", err)
		}
		return history.NewRedisStore(client, cfg.HistoryPrefix), nil
	case HistoryPostgres:
		pg, err := history.NewPostgresStore(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to connect history store: %w", err)
		}
		d.closers = append(d.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate history store: %w", err)
		}
		return pg, nil
	case HistoryMemory, "":
		return history.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.HistoryBackend)
	}
}

func (d *Dependencies) createObserver(ctx context.Context, cfg *Config) (events.Observer, error) {
	multi := events.NewMultiObserver(events.NewLogObserver(d.Logger))

	if cfg.MetricsEnabled {
		multi.Add(telemetry.NewPrometheusObserver(prometheus.DefaultRegisterer))
	}

	if cfg.EventsStream != "" {
		client, err := d.redisClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect event stream: %w", err)
		}
		multi.Add(events.NewRedisStreamObserver(client, cfg.EventsStream, d.Logger))
	}

	if cfg.PubSubProject != "" {
		ps, err := events.NewPubSubObserver(ctx, cfg.PubSubProject, cfg.PubSubTopic, d.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create pubsub observer: %w", err)
		}
		d.closers = append(d.closers, func() { _ = ps.Close() })
		multi.Add(ps)
	}

	return multi, nil
}

// createAuditPipeline returns nil when auditing cannot run. Audit problems
// never prevent the runtime from starting.
func createAuditPipeline(ctx context.Context, cfg *Config, settings config.Settings, runClient llm.LLMClient, logger *zerolog.Logger) *audit.Pipeline {
	auditorsCfg, err := config.LoadAuditorsConfig()
	if err != nil {
		logger.Warn().Err(err).Msg("auditors config unavailable, audit disabled")
		return nil
	}

	client, model := runClient, cfg.ModelID()
	if settings.Audit.Model != "" && settings.Audit.Model != model {
		c, err := createLLMClient(ctx, cfg.DefaultProvider, settings.Audit.Model, cfg)
		if err != nil {
			logger.Warn().Err(err).Str("model", settings.Audit.Model).Msg("failed to create audit client, using run client")
		} else {
			client, model = c, settings.Audit.Model
		}
	}

	auditors, err := audit.BuildFromConfig(auditorsCfg, client, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to build auditors, audit disabled")
		return nil
	}
	return audit.NewPipeline(auditors, model, logger)
}

func createLLMClient(ctx context.Context, provider string, modelID string, cfg *Config) (llm.LLMClient, error) {
	switch provider {
	case ProviderOpenAI:
		var opts []option.RequestOption
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
		}
		return gpt.NewClient(cfg.OpenAIKey, modelID, opts...)
	case ProviderGemini:
		return gemini.NewClient(ctx, cfg.GeminiAPIKey, modelID)
	default:
		return bedrock.NewClient(ctx, cfg.AWSRegion, modelID)
	}
}
