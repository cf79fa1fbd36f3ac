package setup

import (
	"os"
	"strconv"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/history"
)

const (
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
)

const (
	HistoryMemory   = "memory"
	HistoryRedis    = "redis"
	HistoryPostgres = "postgres"
)

type Config struct {
	AWSRegion       string
	ClaudeModelID   string
	OpenAIKey       string
	OpenAIModelID   string
	OpenAIBaseURL   string
	GeminiAPIKey    string
	GeminiModelID   string
	DefaultProvider string
	MaxTokens       int
	Temperature     float64

	HistoryBackend string
	HistoryPrefix  string
	RedisAddr      string
	RedisPassword  string
	RedisRetries   int
	Postgres       history.Config

	EventsStream   string
	PubSubProject  string
	PubSubTopic    string
	MetricsEnabled bool

	LogLevel string
}

func LoadConfig() *Config {
	return &Config{
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		ClaudeModelID:   getEnv("CLAUDE_MODEL_ID", ""),
		OpenAIKey:       getEnv("OPEN_AI_KEY", ""),
		OpenAIModelID:   getEnv("OPEN_AI_MODEL_ID", ""),
		OpenAIBaseURL:   getEnv("OPEN_AI_BASE_URL", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:   getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		DefaultProvider: getEnv("DEFAULT_LLM_PROVIDER", ProviderBedrock),
		MaxTokens:       getEnvInt("MODEL_MAX_TOKENS", 2048),
		Temperature:     getEnvFloat("MODEL_TEMPERATURE", 0.2),

		HistoryBackend: getEnv("HISTORY_BACKEND", HistoryMemory),
		HistoryPrefix:  getEnv("HISTORY_PREFIX", "governed"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisRetries:   getEnvInt("REDIS_MAX_RETRIES", 5),
		Postgres: history.Config{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "governed"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},

		EventsStream:   getEnv("EVENTS_STREAM", ""),
		PubSubProject:  getEnv("PUBSUB_PROJECT_ID", ""),
		PubSubTopic:    getEnv("PUBSUB_TOPIC", "governance-events"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ModelID is the model the configured provider will call.
func (c *Config) ModelID() string {
	switch c.DefaultProvider {
	case ProviderOpenAI:
		return c.OpenAIModelID
	case ProviderGemini:
		return c.GeminiModelID
	default:
		return c.ClaudeModelID
	}
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}

	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
