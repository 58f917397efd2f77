package inference

import (
	"fmt"
	"log/slog"
	"time"
)

// Config holds provider configuration. Constructors start from
// DefaultConfig, overwrite the fields their API needs, then apply options.
type Config struct {
	Name    string // label used in errors, logs and health reports
	BaseURL string
	APIKey  string // optional for local OpenAI-compatible servers

	Model      string // chat model
	AudioModel string // audio-understanding model, Gemini only
	EmbedModel string // empty disables embeddings

	// Sophia speaks every reply, so the defaults keep replies short.
	MaxTokens   int
	Temperature float64

	Timeout       time.Duration // unary requests
	StreamTimeout time.Duration // whole streamed reply

	MaxRetries int // extra attempts after a temporary APIError
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

func WithName(name string) Option        { return func(c *Config) { c.Name = name } }
func WithBaseURL(url string) Option      { return func(c *Config) { c.BaseURL = url } }
func WithAPIKey(key string) Option       { return func(c *Config) { c.APIKey = key } }
func WithModel(model string) Option      { return func(c *Config) { c.Model = model } }
func WithAudioModel(model string) Option { return func(c *Config) { c.AudioModel = model } }
func WithEmbedModel(model string) Option { return func(c *Config) { c.EmbedModel = model } }
func WithMaxTokens(n int) Option         { return func(c *Config) { c.MaxTokens = n } }
func WithTemperature(t float64) Option   { return func(c *Config) { c.Temperature = t } }
func WithLogger(l *slog.Logger) Option   { return func(c *Config) { c.Logger = l } }

// WithTimeout bounds each unary request. A zero d keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithStreamTimeout bounds a whole streamed reply.
func WithStreamTimeout(d time.Duration) Option {
	return func(c *Config) { c.StreamTimeout = d }
}

// WithRetry retries temporary API failures up to maxRetries more times,
// waiting delay times the attempt number between them.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// DefaultConfig returns the OpenAI configuration Sophia uses as primary.
func DefaultConfig() *Config {
	return &Config{
		Name:          "openai",
		BaseURL:       "https://api.openai.com/v1",
		Model:         "gpt-4o-mini",
		EmbedModel:    "text-embedding-3-small",
		MaxTokens:     150,
		Temperature:   0.7,
		Timeout:       30 * time.Second,
		StreamTimeout: 2 * time.Minute,
		MaxRetries:    2,
		RetryDelay:    200 * time.Millisecond,
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks that the config can issue requests.
func (c *Config) Validate() error {
	switch {
	case c.Model == "":
		return ErrNoModel
	case c.BaseURL == "":
		return fmt.Errorf("inference: %s: base URL required", c.Name)
	case c.MaxRetries < 0:
		return fmt.Errorf("inference: %s: negative retry count %d", c.Name, c.MaxRetries)
	}
	return nil
}

// OpenAI returns options for the OpenAI chat and embedding API. An empty
// baseURL or model keeps the default.
func OpenAI(apiKey, baseURL, model, embedModel string) []Option {
	opts := []Option{WithName("openai"), WithAPIKey(apiKey), WithEmbedModel(embedModel)}
	if baseURL != "" {
		opts = append(opts, WithBaseURL(baseURL))
	}
	if model != "" {
		opts = append(opts, WithModel(model))
	}
	return opts
}

// Mistral returns options pointing the OpenAI-compatible client at Mistral.
func Mistral(apiKey, model string) []Option {
	if model == "" {
		model = "mistral-small-latest"
	}
	return []Option{
		WithName("mistral"),
		WithBaseURL("https://api.mistral.ai/v1"),
		WithAPIKey(apiKey),
		WithModel(model),
		WithEmbedModel("mistral-embed"),
	}
}
