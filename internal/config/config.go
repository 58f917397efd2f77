// Package config loads go-sophia configuration from the environment.
//
// Values come from process environment variables, optionally seeded from a
// .env file. Struct tags drive parsing; defaults live next to the fields.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the sophia service.
type Config struct {
	// Runtime
	Env      string `env:"GO_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8000"`

	Providers ProvidersConfig
	Memory    MemoryConfig
	Storage   StorageConfig
	Eval      EvalConfig
	Telemetry TelemetryConfig
}

// ProvidersConfig holds provider credentials and model choices.
// An empty key disables the provider; its chain tier is skipped.
type ProvidersConfig struct {
	MistralKey   string `env:"MISTRAL_API_KEY"`
	OpenAIKey    string `env:"OPENAI_API_KEY"`
	AnthropicKey string `env:"ANTHROPIC_API_KEY"`
	GoogleKey    string `env:"GOOGLE_API_KEY"`
	InworldKey   string `env:"INWORLD_API_KEY"`

	GenerationModel string `env:"GENERATION_MODEL" envDefault:"gpt-4o-mini"`
	GenerationURL   string `env:"GENERATION_BASE_URL" envDefault:"https://api.openai.com/v1"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-haiku-latest"`
	EmotionModel    string `env:"EMOTION_MODEL" envDefault:"mistral-small-latest"`
	EmbedModel      string `env:"EMBED_MODEL" envDefault:"text-embedding-3-small"`
	InworldVoice    string `env:"INWORLD_VOICE_ID" envDefault:"Ashley"`
	InworldModel    string `env:"INWORLD_MODEL_ID" envDefault:"inworld-tts-1"`
	OpenAIVoice     string `env:"OPENAI_TTS_VOICE" envDefault:"alloy"`
	TTSStreaming    bool   `env:"TTS_STREAMING" envDefault:"false"`

	Timeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"30s"`
}

// MemoryConfig configures the session memory tiers.
type MemoryConfig struct {
	RedisHost     string        `env:"REDIS_HOST"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CacheSize     int           `env:"MEMORY_CACHE_SIZE" envDefault:"1024"`
	TTL           time.Duration `env:"MEMORY_TTL" envDefault:"1h"`
}

// StorageConfig configures durable persistence.
type StorageConfig struct {
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"data/sophia.db"`
	AudioDir    string `env:"AUDIO_DIR"`
	AudioPrefix string `env:"AUDIO_PREFIX" envDefault:"responses"`
}

// EvalConfig configures the evaluation monitor.
type EvalConfig struct {
	IdleTimeout   time.Duration `env:"EVAL_IDLE_TIMEOUT" envDefault:"5m"`
	SweepSchedule string        `env:"EVAL_SWEEP_SCHEDULE" envDefault:"@every 1m"`
	Baseline      float64       `env:"EVAL_DRIFT_BASELINE" envDefault:"0.81"`
	Threshold     float64       `env:"EVAL_DRIFT_THRESHOLD" envDefault:"0.20"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Endpoint    string            `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Headers     map[string]string `env:"OTEL_EXPORTER_OTLP_HEADERS" envKeyValSeparator:"="`
	ServiceName string            `env:"OTEL_SERVICE_NAME" envDefault:"sophia"`
	Insecure    bool              `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
}

// Load reads an optional .env file and parses the environment.
// A missing .env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration values that would otherwise fail late.
// Missing provider keys are allowed; they only shorten fallback chains.
func (c *Config) Validate() error {
	if c.Memory.TTL <= 0 {
		return &ConfigError{Field: "Memory.TTL", Message: "MEMORY_TTL must be positive"}
	}
	if c.Eval.IdleTimeout <= 0 {
		return &ConfigError{Field: "Eval.IdleTimeout", Message: "EVAL_IDLE_TIMEOUT must be positive"}
	}
	if c.Eval.Baseline <= 0 || c.Eval.Baseline > 1 {
		return &ConfigError{Field: "Eval.Baseline", Message: "EVAL_DRIFT_BASELINE must be in (0, 1]"}
	}
	if c.Eval.Threshold <= 0 || c.Eval.Threshold >= 1 {
		return &ConfigError{Field: "Eval.Threshold", Message: "EVAL_DRIFT_THRESHOLD must be in (0, 1)"}
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return &ConfigError{Field: "HTTPAddr", Message: "HTTP_ADDR must not be empty"}
	}
	return nil
}

// RedisAddr returns host:port, or "" when Redis is not configured.
func (c *Config) RedisAddr() string {
	if c.Memory.RedisHost == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Memory.RedisHost, c.Memory.RedisPort)
}

// Production reports whether GO_ENV is production.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
