package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/teslashibe/go-sophia/internal/httpc"
	"github.com/teslashibe/go-sophia/internal/log"
	"github.com/teslashibe/go-sophia/internal/provider"
)

const providerMistral = "mistral"

// Mistral transcribes with Voxtral through the audio transcription endpoint.
type Mistral struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewMistral creates a Voxtral provider.
func NewMistral(opts ...Option) (*Mistral, error) {
	cfg, err := newConfig("https://api.mistral.ai/v1", "voxtral-mini-latest", opts)
	if err != nil {
		return nil, WrapError(providerMistral, err)
	}

	return &Mistral{
		config: cfg,
		http:   httpc.NewClient(cfg.Timeout),
		logger: log.Component(cfg.Logger, "stt.mistral"),
	}, nil
}

// Name implements Provider.
func (m *Mistral) Name() string { return providerMistral }

// Transcribe implements Provider.
func (m *Mistral) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	if len(req.Audio) == 0 {
		return nil, WrapError(providerMistral, ErrEmptyAudio)
	}
	req.normalize()
	start := time.Now()

	body, contentType, err := multipartBody(req, map[string]string{
		"model":    m.config.Model,
		"language": req.Language,
	})
	if err != nil {
		return nil, WrapError(providerMistral, err)
	}

	url := strings.TrimSuffix(m.config.BaseURL, "/") + "/audio/transcriptions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, WrapError(providerMistral, err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+m.config.APIKey)

	resp, err := m.http.Do(httpReq)
	if err != nil {
		return nil, WrapError(providerMistral, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.ReadError(providerMistral, resp)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, WrapError(providerMistral, fmt.Errorf("decode response: %w", err))
	}

	m.logger.Debug("transcribed",
		"chars", len(out.Text),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &Result{
		Text:      strings.TrimSpace(out.Text),
		Provider:  providerMistral,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Close releases resources.
func (m *Mistral) Close() error {
	m.http.CloseIdleConnections()
	return nil
}

// multipartBody encodes the audio as the "file" part plus non-empty fields.
func multipartBody(req *Request, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.Filename))
	h.Set("Content-Type", req.MIMEType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, "", err
	}

	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// Verify Mistral implements Provider at compile time.
var _ Provider = (*Mistral)(nil)
