package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Providers ProvidersConfig
	Stream    StreamConfig
	Events    EventsConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LLMLogFilePath     string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
	OtelEnabled        bool
	OtelEndpoint       string
}

func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	Connection string
}

type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Models  []string
}

type ProvidersConfig struct {
	OpenAI    ProviderConfig
	Anthropic ProviderConfig
	Gemini    ProviderConfig
	Ollama    ProviderConfig
	// OllamaEnabled registers the local provider without an explicit base URL.
	OllamaEnabled bool
}

type StreamConfig struct {
	FirstChunkTimeout  time.Duration
	IdleTimeout        time.Duration
	HeartbeatInterval  time.Duration
	FinalizeTimeout    time.Duration
	RateLimitPerMinute int
}

type EventsConfig struct {
	TurnTopic string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			LLMLogFilePath:     getEnv("LLM_LOG_FILE_PATH", "logs/llm_stream.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Providers: ProvidersConfig{
			OpenAI: ProviderConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", ""),
				Models:  getEnvAsList("OPENAI_MODELS", []string{"gpt-4o", "gpt-4o-mini"}),
			},
			Anthropic: ProviderConfig{
				APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
				Models:  getEnvAsList("ANTHROPIC_MODELS", []string{"claude-3-5-sonnet-latest", "claude-3-5-haiku-latest"}),
			},
			Gemini: ProviderConfig{
				APIKey: getEnv("GEMINI_API_KEY", ""),
				Models: getEnvAsList("GEMINI_MODELS", []string{"gemini-pro", "gemini-1.5-flash"}),
			},
			Ollama: ProviderConfig{
				BaseURL: getEnv("OLLAMA_BASE_URL", ""),
				Models:  getEnvAsList("OLLAMA_MODELS", nil),
			},
			OllamaEnabled: getEnvAsBool("OLLAMA_ENABLED", false),
		},
		Stream: StreamConfig{
			FirstChunkTimeout:  getEnvAsDuration("STREAM_FIRST_CHUNK_TIMEOUT", 30*time.Second),
			IdleTimeout:        getEnvAsDuration("STREAM_IDLE_TIMEOUT", 20*time.Second),
			HeartbeatInterval:  getEnvAsDuration("STREAM_HEARTBEAT_INTERVAL", 15*time.Second),
			FinalizeTimeout:    getEnvAsDuration("STREAM_FINALIZE_TIMEOUT", 10*time.Second),
			RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),
		},
		Events: EventsConfig{
			TurnTopic: getEnv("TURN_EVENTS_TOPIC", "CHAT_TURN_COMPLETED"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("45s") or bare seconds ("45").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	strValue, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(strValue, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
