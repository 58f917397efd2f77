// Package compose produces Sophia's reply text for a turn.
//
// A Composer walks an ordered list of tiers: the primary generation
// provider, the secondary provider, then a keyword-triggered static
// sentence. The static tier always answers, so Compose never fails.
package compose

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-sophia/internal/log"
	"github.com/teslashibe/go-sophia/pkg/emotion"
	"github.com/teslashibe/go-sophia/pkg/inference"
	"github.com/teslashibe/go-sophia/pkg/intent"
	"github.com/teslashibe/go-sophia/pkg/knowledge"
	"github.com/teslashibe/go-sophia/pkg/memory"
)

// Tier names which strategy produced a reply.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
	TierStatic    Tier = "static"
	TierSafetyNet Tier = "safety_net"
	TierClarify   Tier = "clarify"
)

// Fallback reports whether t is anything other than the primary provider.
func (t Tier) Fallback() bool {
	return t != TierPrimary && t != TierClarify
}

// Input is everything the composer knows about a turn.
type Input struct {
	Transcript string
	Intent     intent.Intent
	Emotion    emotion.Score
	Memory     memory.Context
}

// Reply is the composed text and where it came from.
type Reply struct {
	Text          string
	Tier          Tier
	KnowledgeHits []knowledge.Match
}

// Retriever supplies knowledge context for domain questions.
type Retriever interface {
	Context(ctx context.Context, query string) (string, []knowledge.Match)
}

var errEmptyStream = errors.New("compose: stream yielded no text")

// Config configures a Composer.
type Config struct {
	MaxTokens   int
	Temperature float64
	Logger      *slog.Logger
}

// Option configures a Composer.
type Option func(*Config)

// WithMaxTokens caps generated reply length.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the default composer configuration.
func DefaultConfig() Config {
	return Config{MaxTokens: 150, Temperature: 0.7}
}

// tier is one generation strategy. build returns the messages to send.
type tier struct {
	name     Tier
	provider inference.Provider
	build    func(in Input, knowledgeContext string) []inference.Message
}

// Composer builds replies. It is safe for concurrent use.
type Composer struct {
	tiers     []tier
	retriever Retriever
	cfg       Config
	logger    *slog.Logger
}

// NewComposer creates a composer over the primary and secondary providers.
// Either provider or the retriever may be nil.
func NewComposer(primary, secondary inference.Provider, retriever Retriever, opts ...Option) *Composer {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Composer{
		retriever: retriever,
		cfg:       cfg,
		logger:    log.Component(cfg.Logger, "compose.composer"),
	}
	if primary != nil {
		c.tiers = append(c.tiers, tier{
			name:     TierPrimary,
			provider: primary,
			build: func(in Input, kctx string) []inference.Message {
				return inference.Prompt(SystemPrompt(in.Intent),
					UserPrompt(in.Transcript, in.Emotion, in.Memory.String(), kctx))
			},
		})
	}
	if secondary != nil {
		c.tiers = append(c.tiers, tier{
			name:     TierSecondary,
			provider: secondary,
			build: func(in Input, _ string) []inference.Message {
				return inference.Prompt(SecondarySystemPrompt(in.Intent), in.Transcript)
			},
		})
	}
	return c
}

func (c *Composer) request(t tier, in Input, kctx string) *inference.ChatRequest {
	return &inference.ChatRequest{
		Messages:    t.build(in, kctx),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
}

// knowledgeFor retrieves context only for domain questions.
func (c *Composer) knowledgeFor(ctx context.Context, in Input) (string, []knowledge.Match) {
	if in.Intent != intent.DomainQuestion || c.retriever == nil {
		return "", nil
	}
	return c.retriever.Context(ctx, in.Transcript)
}

// Compose returns a reply for in. It never fails: an empty transcript
// gets ClarifyReply without any provider call, and when every provider
// fails the static tier answers.
func (c *Composer) Compose(ctx context.Context, in Input) Reply {
	if strings.TrimSpace(in.Transcript) == "" {
		return Reply{Text: ClarifyReply, Tier: TierClarify}
	}

	kctx, hits := c.knowledgeFor(ctx, in)

	for i, t := range c.tiers {
		resp, err := t.provider.Chat(ctx, c.request(t, in, kctx))
		text := strings.TrimSpace(resp.Text())
		if err == nil && text != "" {
			return Reply{Text: text, Tier: t.name, KnowledgeHits: hits}
		}
		if err == nil {
			err = inference.ErrEmptyResponse
		}
		c.logger.Warn("provider failed, trying next",
			"tier", t.name,
			"provider_index", i,
			"error", err,
		)
		if ctx.Err() != nil {
			break
		}
	}

	return c.static(in, hits)
}

func (c *Composer) static(in Input, hits []knowledge.Match) Reply {
	text, ok := StaticReply(in.Transcript)
	if ok {
		return Reply{Text: text, Tier: TierStatic, KnowledgeHits: hits}
	}
	return Reply{Text: text, Tier: TierSafetyNet, KnowledgeHits: hits}
}

// StreamTo streams the reply through yield as chunks arrive and returns
// the full reply. A tier that fails to open or yields nothing advances to
// the next; a tier that fails after yielding stops the stream with what
// was sent. When no tier yields, the static sentence is yielded as one
// chunk. A yield error or cancelled context stops streaming and returns
// the partial reply with the error.
func (c *Composer) StreamTo(ctx context.Context, in Input, yield func(delta string) error) (Reply, error) {
	if strings.TrimSpace(in.Transcript) == "" {
		return Reply{Text: ClarifyReply, Tier: TierClarify}, yield(ClarifyReply)
	}

	kctx, hits := c.knowledgeFor(ctx, in)

	for i, t := range c.tiers {
		var sb strings.Builder
		err := c.streamTier(ctx, t, in, kctx, func(delta string) error {
			sb.WriteString(delta)
			return yield(delta)
		})
		if sb.Len() > 0 {
			reply := Reply{Text: sb.String(), Tier: t.name, KnowledgeHits: hits}
			if err != nil && !isProviderErr(err) {
				return reply, err
			}
			if err != nil {
				c.logger.Warn("stream broke after partial reply", "tier", t.name, "error", err)
			}
			return reply, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Reply{Tier: t.name, KnowledgeHits: hits}, ctxErr
		}
		c.logger.Warn("provider stream failed, trying next",
			"tier", t.name,
			"provider_index", i,
			"error", err,
		)
	}

	reply := c.static(in, hits)
	return reply, yield(reply.Text)
}

// yieldError marks errors returned by the caller's yield.
type yieldError struct{ err error }

func (e yieldError) Error() string { return e.err.Error() }
func (e yieldError) Unwrap() error { return e.err }

func isProviderErr(err error) bool {
	var ye yieldError
	return !errors.As(err, &ye) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Composer) streamTier(ctx context.Context, t tier, in Input, kctx string, yield func(string) error) error {
	stream, err := t.provider.Stream(ctx, c.request(t, in, kctx))
	if err != nil {
		return err
	}
	defer stream.Close()

	sent := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := stream.Recv()
		if err != nil {
			return err
		}
		if chunk.Delta != "" {
			if err := yield(chunk.Delta); err != nil {
				return yieldError{err}
			}
			sent = true
		}
		if chunk.Done {
			if !sent {
				return errEmptyStream
			}
			return nil
		}
	}
}

// ComposeStream is StreamTo over a channel. The channel is closed when the
// reply is complete or ctx is cancelled.
func (c *Composer) ComposeStream(ctx context.Context, in Input) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		_, _ = c.StreamTo(ctx, in, func(delta string) error {
			select {
			case out <- delta:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return out
}
