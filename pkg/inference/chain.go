package inference

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-sophia/internal/log"
	"github.com/teslashibe/go-sophia/internal/provider"
)

// Chain tries multiple providers in order until one succeeds.
// Adding or removing a fallback tier is a change to the provider list only.
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
	return &Chain{providers: providers, logger: log.Component(logger, "inference.chain")}, nil
}

// attempt runs call on each capable provider in order. unsupported is
// returned when no provider is capable.
func attempt[T any](ctx context.Context, c *Chain, op string, capable func(Capabilities) bool, unsupported error, call func(Provider) (T, error)) (T, error) {
	out, err := provider.First(ctx, c.logger, op, c.providers, func(p Provider) (T, error) {
		if !capable(p.Capabilities()) {
			var zero T
			return zero, provider.ErrSkip
		}
		return call(p)
	})
	if errors.Is(err, provider.ErrSkip) {
		return out, unsupported
	}
	return out, err
}

// Chat tries each provider until one returns non-empty content.
func (c *Chain) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return attempt(ctx, c, "chat",
		func(caps Capabilities) bool { return caps.Chat },
		ErrProviderUnavailable,
		func(p Provider) (*ChatResponse, error) {
			resp, err := p.Chat(ctx, req)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(resp.Text()) == "" {
				return nil, ErrEmptyResponse
			}
			return resp, nil
		})
}

// Stream tries each provider until one opens a stream.
func (c *Chain) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	return attempt(ctx, c, "stream",
		func(caps Capabilities) bool { return caps.Streaming },
		ErrStreamingNotSupported,
		func(p Provider) (Stream, error) { return p.Stream(ctx, req) })
}

// Embed tries each provider that supports embeddings.
func (c *Chain) Embed(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error) {
	return attempt(ctx, c, "embed",
		func(caps Capabilities) bool { return caps.Embeddings },
		ErrEmbeddingsNotSupported,
		func(p Provider) (*EmbedResponse, error) {
			resp, err := p.Embed(ctx, req)
			if err != nil {
				return nil, err
			}
			if len(resp.Embeddings) != len(req.Input) {
				return nil, ErrEmptyResponse
			}
			return resp, nil
		})
}

// Audio tries each provider that accepts audio input.
func (c *Chain) Audio(ctx context.Context, req *AudioRequest) (*AudioResponse, error) {
	return attempt(ctx, c, "audio",
		func(caps Capabilities) bool { return caps.Audio },
		ErrAudioNotSupported,
		func(p Provider) (*AudioResponse, error) { return p.Audio(ctx, req) })
}

// Capabilities returns combined capabilities of all providers.
func (c *Chain) Capabilities() Capabilities {
	var caps Capabilities
	for _, p := range c.providers {
		pc := p.Capabilities()
		caps.Chat = caps.Chat || pc.Chat
		caps.Streaming = caps.Streaming || pc.Streaming
		caps.Embeddings = caps.Embeddings || pc.Embeddings
		caps.Audio = caps.Audio || pc.Audio
	}
	return caps
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

// Verify Chain implements Provider at compile time.
var _ Provider = (*Chain)(nil)
