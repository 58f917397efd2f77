package tts

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-sophia/internal/log"
	"github.com/teslashibe/go-sophia/internal/provider"
)

// Chain implements Provider by trying multiple providers in order.
// The first provider that returns audio wins.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain returns a chain over providers, tried in the order given. A
// nil logger means slog.Default.
func NewChain(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	return &Chain{providers: providers, logger: log.Component(logger, "tts.chain")}, nil
}

// Name implements Provider.
func (c *Chain) Name() string { return "chain" }

// Synthesize tries each provider until one returns non-empty audio.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	return provider.First(ctx, c.logger, "synthesize", c.providers, func(p Provider) (*AudioResult, error) {
		res, err := p.Synthesize(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(res.Audio) == 0 {
			return nil, WrapError(p.Name(), ErrEmptyAudio)
		}
		if res.Provider == "" {
			res.Provider = p.Name()
		}
		return res, nil
	})
}

// Stream tries each provider until one opens a stream. Failures after the
// stream is open are the caller's to handle.
func (c *Chain) Stream(ctx context.Context, text string) (AudioStream, error) {
	return provider.First(ctx, c.logger, "stream", c.providers, func(p Provider) (AudioStream, error) {
		return p.Stream(ctx, text)
	})
}

// Health succeeds when any provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	return provider.Healthy(c.providers, func(p Provider) error { return p.Health(ctx) })
}

// Close closes every provider, even after a failure.
func (c *Chain) Close() error { return provider.CloseAll(c.providers) }

// Providers returns the list of providers in the chain.
func (c *Chain) Providers() []Provider {
	return c.providers
}

var _ Provider = (*Chain)(nil)
