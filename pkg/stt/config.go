package stt

import (
	"log/slog"
	"time"
)

// Config holds speech provider configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Option is a functional option for configuring speech providers.
type Option func(*Config)

func WithAPIKey(key string) Option     { return func(c *Config) { c.APIKey = key } }
func WithBaseURL(url string) Option    { return func(c *Config) { c.BaseURL = url } }
func WithModel(model string) Option    { return func(c *Config) { c.Model = model } }
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

// WithTimeout bounds one transcription request. A zero d keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// newConfig builds a provider config from its vendor defaults and opts.
func newConfig(baseURL, model string, opts []Option) (*Config, error) {
	cfg := &Config{BaseURL: baseURL, Model: model, Timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	return cfg, nil
}
