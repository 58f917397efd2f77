package tts

import (
	"log/slog"
	"time"
)

// Inworld defaults.
const (
	DefaultVoiceID = "Ashley"
	DefaultModelID = "inworld-tts-1"
)

// Config holds TTS provider configuration. Constructors start from
// DefaultConfig and overwrite the fields their vendor needs before
// applying options.
type Config struct {
	APIKey  string
	BaseURL string // empty uses the vendor endpoint

	VoiceID      string
	ModelID      string
	OutputFormat Encoding

	Timeout       time.Duration // unary synthesis
	StreamTimeout time.Duration // whole streamed utterance

	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option is a functional option for configuring TTS providers.
type Option func(*Config)

func WithAPIKey(key string) Option            { return func(c *Config) { c.APIKey = key } }
func WithBaseURL(url string) Option           { return func(c *Config) { c.BaseURL = url } }
func WithVoice(voiceID string) Option         { return func(c *Config) { c.VoiceID = voiceID } }
func WithModel(modelID string) Option         { return func(c *Config) { c.ModelID = modelID } }
func WithOutputFormat(format Encoding) Option { return func(c *Config) { c.OutputFormat = format } }
func WithLogger(l *slog.Logger) Option        { return func(c *Config) { c.Logger = l } }

// WithTimeout bounds unary synthesis. A zero d keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithStreamTimeout bounds a streamed utterance. A zero d keeps the default.
func WithStreamTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.StreamTimeout = d
		}
	}
}

// WithRetry retries temporary API failures up to maxRetries more times.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) { c.MaxRetries, c.RetryDelay = maxRetries, delay }
}

// DefaultConfig returns the Inworld configuration Sophia speaks with.
func DefaultConfig() *Config {
	return &Config{
		VoiceID:       DefaultVoiceID,
		ModelID:       DefaultModelID,
		OutputFormat:  EncodingMP3,
		Timeout:       30 * time.Second,
		StreamTimeout: time.Minute,
		MaxRetries:    1,
		RetryDelay:    100 * time.Millisecond,
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

// Validate checks that the config names a key and a voice.
func (c *Config) Validate() error {
	switch {
	case c.APIKey == "":
		return ErrNoAPIKey
	case c.VoiceID == "":
		return ErrNoVoiceID
	}
	return nil
}
