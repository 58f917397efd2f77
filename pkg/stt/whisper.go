package stt

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/teslashibe/go-sophia/internal/httpc"
)

const providerWhisper = "whisper"

// Whisper transcribes with OpenAI's whisper-1 through the official SDK.
type Whisper struct {
	client openai.Client
	config *Config
}

// NewWhisper creates a Whisper provider.
func NewWhisper(opts ...Option) (*Whisper, error) {
	cfg, err := newConfig("", string(openai.AudioModelWhisper1), opts)
	if err != nil {
		return nil, WrapError(providerWhisper, err)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpc.NewClient(cfg.Timeout)),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Whisper{
		client: openai.NewClient(reqOpts...),
		config: cfg,
	}, nil
}

// Name implements Provider.
func (w *Whisper) Name() string { return providerWhisper }

// Transcribe implements Provider.
func (w *Whisper) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	if len(req.Audio) == 0 {
		return nil, WrapError(providerWhisper, ErrEmptyAudio)
	}
	req.normalize()
	start := time.Now()

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(req.Audio), req.Filename, req.MIMEType),
		Model: openai.AudioModel(w.config.Model),
	}
	if req.Language != "" {
		params.Language = openai.String(req.Language)
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, WrapError(providerWhisper, err)
	}

	return &Result{
		Text:      strings.TrimSpace(resp.Text),
		Provider:  providerWhisper,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Close releases resources.
func (w *Whisper) Close() error {
	return nil
}

// Verify Whisper implements Provider at compile time.
var _ Provider = (*Whisper)(nil)
