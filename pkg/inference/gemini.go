package inference

import (
	"bytes"
	"cmp"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-sophia/internal/httpc"
	"github.com/teslashibe/go-sophia/internal/log"
	"github.com/teslashibe/go-sophia/internal/provider"
)

const (
	providerGemini   = "gemini"
	geminiAudioLimit = 1000
)

// Gemini talks to the generateContent API. It is the only provider that
// accepts inline audio, so the transcriber and the audio emotion
// classifier go through it. Streaming and embeddings are left to the rest
// of the chain.
type Gemini struct {
	cfg    *Config
	client *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini provider. An API key is required.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.Name = providerGemini
	cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	cfg.Model = "gemini-2.0-flash"
	cfg.AudioModel = cfg.Model
	cfg.EmbedModel = ""
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapError(providerGemini, err)
	}

	return &Gemini{
		cfg:    cfg,
		client: httpc.NewClient(cfg.Timeout),
		logger: log.Component(cfg.Logger, "inference.gemini"),
	}, nil
}

func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	model := cmp.Or(req.Model, g.cfg.Model)

	system, turns := splitSystem(req.Messages)
	payload := geminiRequest{
		Contents: make([]geminiContent, 0, len(turns)),
		Config: geminiGenConfig{
			Temperature:     cmp.Or(req.Temperature, g.cfg.Temperature),
			MaxOutputTokens: cmp.Or(req.MaxTokens, g.cfg.MaxTokens),
		},
	}
	for _, m := range turns {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		payload.Contents = append(payload.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	if system != "" {
		payload.System = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	if req.JSON {
		payload.Config.ResponseMIMEType = "application/json"
	}

	text, finish, err := g.generate(ctx, model, &payload)
	if err != nil {
		return nil, err
	}
	return &ChatResponse{
		Message:      NewAssistantMessage(text),
		FinishReason: finish,
		Model:        model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (g *Gemini) Stream(context.Context, *ChatRequest) (Stream, error) {
	return nil, WrapError(providerGemini, ErrStreamingNotSupported)
}

// Audio sends the clip inline next to the prompt. Decoding runs at zero
// temperature; a missing MIME type is taken to be WAV.
func (g *Gemini) Audio(ctx context.Context, req *AudioRequest) (*AudioResponse, error) {
	if len(req.Audio) == 0 {
		return nil, WrapError(providerGemini, fmt.Errorf("empty audio"))
	}
	start := time.Now()
	model := cmp.Or(req.Model, g.cfg.AudioModel)

	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{
			{Text: req.Prompt},
			{Inline: &geminiBlob{
				MIMEType: cmp.Or(req.MIMEType, "audio/wav"),
				Data:     base64.StdEncoding.EncodeToString(req.Audio),
			}},
		}}},
		Config: geminiGenConfig{MaxOutputTokens: cmp.Or(req.MaxTokens, geminiAudioLimit)},
	}

	text, _, err := g.generate(ctx, model, &payload)
	if err != nil {
		return nil, err
	}
	return &AudioResponse{
		Content:   text,
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

func (g *Gemini) Embed(context.Context, *EmbedRequest) (*EmbedResponse, error) {
	return nil, WrapError(providerGemini, ErrEmbeddingsNotSupported)
}

func (g *Gemini) Capabilities() Capabilities {
	return Capabilities{Chat: true, Audio: true}
}

// Health spends one output token.
func (g *Gemini) Health(ctx context.Context) error {
	_, err := g.Chat(ctx, &ChatRequest{Messages: []Message{NewUserMessage("ping")}, MaxTokens: 1})
	return err
}

func (g *Gemini) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

// generate posts one generateContent call and joins the first candidate's
// text parts.
func (g *Gemini) generate(ctx context.Context, model string, payload *geminiRequest) (string, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", WrapError(providerGemini, fmt.Errorf("marshal payload: %w", err))
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimSuffix(g.cfg.BaseURL, "/"), model)

	retry := httpc.Retry{Max: g.cfg.MaxRetries, Delay: g.cfg.RetryDelay, Log: g.logger}
	resp, err := httpc.DoWithRetry(ctx, g.client, retry, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("x-goog-api-key", g.cfg.APIKey)
		return r, nil
	})
	if err != nil {
		return "", "", WrapError(providerGemini, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", provider.ReadError(providerGemini, resp)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", WrapError(providerGemini, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", "", WrapError(providerGemini, ErrEmptyResponse)
	}

	first := out.Candidates[0]
	var sb strings.Builder
	for _, p := range first.Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), first.FinishReason, nil
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	System   *geminiContent  `json:"systemInstruction,omitempty"`
	Config   geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text   string      `json:"text,omitempty"`
	Inline *geminiBlob `json:"inline_data,omitempty"`
}

type geminiBlob struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

var _ Provider = (*Gemini)(nil)
