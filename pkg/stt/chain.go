package stt

import (
	"context"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-sophia/internal/log"
	"github.com/teslashibe/go-sophia/internal/provider"
)

// Chain implements Provider by trying multiple providers in order.
// An error or an empty transcript advances to the next provider; no
// provider is retried.
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
	return &Chain{providers: providers, logger: log.Component(logger, "stt.chain")}, nil
}

// Name implements Provider.
func (c *Chain) Name() string { return "chain" }

// Transcribe tries each provider until one returns non-empty text.
func (c *Chain) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	return provider.First(ctx, c.logger, "transcribe", c.providers, func(p Provider) (*Result, error) {
		result, err := p.Transcribe(ctx, req)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(result.Text) == "" {
			return nil, WrapError(p.Name(), ErrEmptyTranscript)
		}
		return result, nil
	})
}

// Close closes every provider, even after a failure.
func (c *Chain) Close() error { return provider.CloseAll(c.providers) }

// Providers returns the list of providers in the chain.
func (c *Chain) Providers() []Provider {
	return c.providers
}

// Verify Chain implements Provider at compile time.
var _ Provider = (*Chain)(nil)
