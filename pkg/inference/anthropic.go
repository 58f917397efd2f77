package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/teslashibe/go-sophia/internal/httpc"
	"github.com/teslashibe/go-sophia/internal/log"
)

const providerAnthropic = "anthropic"

// Anthropic implements Provider on top of the official Anthropic SDK.
// It serves as the secondary generation tier.
type Anthropic struct {
	client anthropic.Client
	config *Config
	logger *slog.Logger
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(opts ...Option) (*Anthropic, error) {
	cfg := DefaultConfig()
	cfg.Name = providerAnthropic
	cfg.BaseURL = ""
	cfg.Model = "claude-3-5-haiku-latest"
	cfg.EmbedModel = ""
	cfg.MaxRetries = 0
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerAnthropic, ErrNoAPIKey)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithHTTPClient(httpc.NewClient(cfg.Timeout)),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		client: anthropic.NewClient(reqOpts...),
		config: cfg,
		logger: log.Component(cfg.Logger, "inference.anthropic"),
	}, nil
}

// Chat generates a message with the Messages API.
func (a *Anthropic) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	params, err := a.buildParams(req)
	if err != nil {
		return nil, err
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, WrapError(providerAnthropic, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &ChatResponse{
		Message:      NewAssistantMessage(sb.String()),
		FinishReason: string(msg.StopReason),
		Usage: Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		Model:     string(msg.Model),
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Stream opens a streaming Messages API call.
func (a *Anthropic) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	params, err := a.buildParams(req)
	if err != nil {
		return nil, err
	}
	return &anthropicStream{stream: a.client.Messages.NewStreaming(ctx, params)}, nil
}

// Embed is not offered by Anthropic.
func (a *Anthropic) Embed(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error) {
	return nil, WrapError(providerAnthropic, ErrEmbeddingsNotSupported)
}

// Audio is not offered by Anthropic.
func (a *Anthropic) Audio(ctx context.Context, req *AudioRequest) (*AudioResponse, error) {
	return nil, WrapError(providerAnthropic, ErrAudioNotSupported)
}

// Capabilities returns Anthropic's capabilities.
func (a *Anthropic) Capabilities() Capabilities {
	return Capabilities{Chat: true, Streaming: true}
}

// Health sends a one-token request.
func (a *Anthropic) Health(ctx context.Context) error {
	_, err := a.Chat(ctx, &ChatRequest{
		Messages:  []Message{NewUserMessage("ping")},
		MaxTokens: 1,
	})
	return err
}

// Close releases resources.
func (a *Anthropic) Close() error {
	return nil
}

func (a *Anthropic) buildParams(req *ChatRequest) (anthropic.MessageNewParams, error) {
	system, rest := splitSystem(req.Messages)
	if len(rest) == 0 {
		return anthropic.MessageNewParams{}, WrapError(providerAnthropic, fmt.Errorf("no user message"))
	}

	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.config.MaxTokens
	}

	messages := make([]anthropic.MessageParam, 0, len(rest))
	for _, m := range rest {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	temp := req.Temperature
	if temp == 0 {
		temp = a.config.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(temp)
	}
	return params, nil
}

// anthropicStream adapts the SDK event stream to Stream.
type anthropicStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	done   bool
}

func (s *anthropicStream) Recv() (*StreamChunk, error) {
	if s.done {
		return &StreamChunk{Done: true}, nil
	}
	for s.stream.Next() {
		switch ev := s.stream.Current().AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if text := ev.Delta.AsTextDelta().Text; text != "" {
				return &StreamChunk{Delta: text}, nil
			}
		case anthropic.MessageDeltaEvent:
			if ev.Delta.StopReason != "" {
				s.done = true
				return &StreamChunk{FinishReason: string(ev.Delta.StopReason), Done: true}, nil
			}
		case anthropic.MessageStopEvent:
			s.done = true
			return &StreamChunk{Done: true}, nil
		}
	}
	s.done = true
	if err := s.stream.Err(); err != nil {
		return nil, WrapError(providerAnthropic, err)
	}
	return &StreamChunk{Done: true}, nil
}

func (s *anthropicStream) Close() error {
	return s.stream.Close()
}

// Verify Anthropic implements Provider at compile time.
var _ Provider = (*Anthropic)(nil)
