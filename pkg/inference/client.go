package inference

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-sophia/internal/httpc"
	"github.com/teslashibe/go-sophia/internal/log"
	"github.com/teslashibe/go-sophia/internal/provider"
)

// Client speaks the OpenAI chat and embeddings API. Mistral, Groq, vLLM
// and Ollama expose the same surface, so one client covers them all; only
// the Config differs.
type Client struct {
	name    string
	baseURL string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client from DefaultConfig and opts.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		name:    cfg.Name,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg,
		http:    httpc.NewClient(cfg.Timeout),
		logger:  log.Component(cfg.Logger, "inference.client").With("provider", cfg.Name),
	}, nil
}

func (c *Client) Name() string { return c.name }

func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	var out chatCompletionResponse
	payload := c.buildChatPayload(req, cmp.Or(req.Model, c.config.Model), false)
	if err := c.call(ctx, http.MethodPost, "/chat/completions", payload, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, WrapError(c.name, fmt.Errorf("no choices returned"))
	}

	choice := out.Choices[0]
	return &ChatResponse{
		Message:      NewAssistantMessage(choice.Message.Content),
		FinishReason: choice.FinishReason,
		Usage:        Usage(out.Usage),
		Model:        out.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (c *Client) Embed(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error) {
	start := time.Now()

	var out embeddingResponse
	payload := embedPayload{Model: cmp.Or(req.Model, c.config.EmbedModel), Input: req.Input}
	if err := c.call(ctx, http.MethodPost, "/embeddings", payload, &out); err != nil {
		return nil, err
	}

	vectors := make([][]float64, len(out.Data))
	for i, d := range out.Data {
		vectors[i] = d.Embedding
	}
	return &EmbedResponse{
		Embeddings: vectors,
		Usage:      Usage(out.Usage),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

func (c *Client) Audio(context.Context, *AudioRequest) (*AudioResponse, error) {
	return nil, WrapError(c.name, ErrAudioNotSupported)
}

// Capabilities reports embeddings only when an embedding model is set.
func (c *Client) Capabilities() Capabilities {
	return Capabilities{Chat: true, Streaming: true, Embeddings: c.config.EmbedModel != ""}
}

// Health lists models, which costs no tokens. It is not retried.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return WrapError(c.name, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return WrapError(c.name, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return provider.ReadError(c.name, resp)
	}
	return nil
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// call sends in as JSON, retrying temporary failures, and decodes a 200
// answer into out.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return WrapError(c.name, fmt.Errorf("marshal payload: %w", err))
	}

	retry := httpc.Retry{Max: c.config.MaxRetries, Delay: c.config.RetryDelay, Log: c.logger}
	resp, err := httpc.DoWithRetry(ctx, c.http, retry, func() (*http.Request, error) {
		return c.newRequest(ctx, method, path, body)
	})
	if err != nil {
		return WrapError(c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return provider.ReadError(c.name, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return WrapError(c.name, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	return req, nil
}

// buildChatPayload fills request gaps from the client config.
func (c *Client) buildChatPayload(req *ChatRequest, model string, stream bool) chatPayload {
	p := chatPayload{
		Model:       model,
		Messages:    make([]wireMessage, len(req.Messages)),
		Stream:      stream,
		MaxTokens:   cmp.Or(req.MaxTokens, c.config.MaxTokens),
		Temperature: cmp.Or(req.Temperature, c.config.Temperature),
	}
	for i, msg := range req.Messages {
		p.Messages[i] = wireMessage{Role: string(msg.Role), Content: msg.Content}
	}
	if req.JSON {
		p.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return p
}

type chatPayload struct {
	Model          string          `json:"model"`
	Messages       []wireMessage   `json:"messages"`
	Stream         bool            `json:"stream,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type embedPayload struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

type chatChoice struct {
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage wireUsage `json:"usage"`
}

var _ Provider = (*Client)(nil)
