package tts

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

const (
	openAIBaseURL  = "https://api.openai.com/v1"
	providerOpenAI = "openai"
)

// OpenAI voices and models.
const (
	VoiceAlloy   = "alloy"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"

	ModelTTS1   = "tts-1"
	ModelTTS1HD = "tts-1-hd"
)

// OpenAI is the secondary voice: the /audio/speech endpoint. It answers
// in MP3, or in raw 24kHz PCM when OutputFormat is EncodingPCM24. It does
// not stream; Stream hands back the whole buffer as one chunk.
type OpenAI struct {
	cfg     *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewOpenAI creates the provider with tts-1 and the alloy voice.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTTS1
	cfg.VoiceID = VoiceAlloy
	cfg.Apply(opts...)
	cfg.VoiceID = cmp.Or(cfg.VoiceID, VoiceAlloy)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &OpenAI{
		cfg:     cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  log.Component(cfg.Logger, "tts.openai"),
		baseURL: cmp.Or(strings.TrimSuffix(cfg.BaseURL, "/"), openAIBaseURL),
	}, nil
}

func (o *OpenAI) Name() string { return providerOpenAI }

// VoiceID returns the configured voice.
func (o *OpenAI) VoiceID() string { return o.cfg.VoiceID }

func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()
	format, wire := o.format()

	body, err := json.Marshal(speechPayload{Model: o.cfg.ModelID, Voice: o.cfg.VoiceID, Input: text, Format: wire})
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("marshal payload: %w", err))
	}

	retry := httpc.Retry{Max: o.cfg.MaxRetries, Delay: o.cfg.RetryDelay, Log: o.logger}
	resp, err := httpc.DoWithRetry(ctx, o.client, retry, func() (*http.Request, error) {
		return o.request(ctx, http.MethodPost, "/audio/speech", body)
	})
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.ReadError(providerOpenAI, resp)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("read response: %w", err))
	}

	latency := time.Since(start).Milliseconds()
	o.logger.Debug("synthesized", "chars", len(text), "bytes", len(audio), "latency_ms", latency, "format", wire)

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  format.Duration(len(audio)),
		CharCount: len(text),
		LatencyMs: latency,
		Provider:  providerOpenAI,
	}, nil
}

func (o *OpenAI) Stream(ctx context.Context, text string) (AudioStream, error) {
	res, err := o.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	return &chunkStream{chunks: [][]byte{res.Audio}, format: res.Format}, nil
}

// Health lists models, which costs no characters.
func (o *OpenAI) Health(ctx context.Context) error {
	req, err := o.request(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return WrapError(providerOpenAI, err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return WrapError(providerOpenAI, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return provider.ReadError(providerOpenAI, resp)
	}
	return nil
}

func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

func (o *OpenAI) request(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// format maps OutputFormat onto what the endpoint can produce. Only MP3
// and 24kHz PCM are offered, so every other choice gets MP3.
func (o *OpenAI) format() (AudioFormat, string) {
	if o.cfg.OutputFormat == EncodingPCM24 {
		return pcmFormat(EncodingPCM24), "pcm"
	}
	return AudioFormat{Encoding: EncodingMP3, SampleRate: 44100, Channels: 1}, "mp3"
}

type speechPayload struct {
	Model  string `json:"model"`
	Voice  string `json:"voice"`
	Input  string `json:"input"`
	Format string `json:"response_format"`
}

var _ Provider = (*OpenAI)(nil)
