package tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-sophia/internal/httpc"
	"github.com/teslashibe/go-sophia/internal/log"
	"github.com/teslashibe/go-sophia/internal/provider"
)

const (
	inworldBaseURL  = "https://api.inworld.ai/tts/v1"
	providerInworld = "inworld"
)

// Inworld implements Provider for the Inworld TTS HTTP API. The API key is
// the pre-encoded Basic credential issued by Inworld.
type Inworld struct {
	config  *Config
	client  *http.Client
	stream  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewInworld creates an Inworld provider. Voice and model default to
// DefaultVoiceID and DefaultModelID.
func NewInworld(opts ...Option) (*Inworld, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = inworldBaseURL
	}

	return &Inworld{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		stream:  httpc.NewClient(cfg.StreamTimeout),
		logger:  log.Component(cfg.Logger, "tts.inworld"),
		baseURL: baseURL,
	}, nil
}

// Name implements Provider.
func (p *Inworld) Name() string { return providerInworld }

type inworldRequest struct {
	Text        string              `json:"text"`
	VoiceID     string              `json:"voiceId"`
	ModelID     string              `json:"modelId"`
	AudioConfig *inworldAudioConfig `json:"audioConfig,omitempty"`
}

type inworldAudioConfig struct {
	AudioEncoding   string `json:"audioEncoding"`
	SampleRateHertz int    `json:"sampleRateHertz,omitempty"`
}

type inworldResponse struct {
	AudioContent string `json:"audioContent"`
}

type inworldChunk struct {
	Result *inworldResponse `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newInworldRequest(cfg *Config, text string) inworldRequest {
	req := inworldRequest{Text: text, VoiceID: cfg.VoiceID, ModelID: cfg.ModelID}
	switch cfg.OutputFormat {
	case EncodingMP3, "":
	default:
		req.AudioConfig = &inworldAudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: SampleRateFromEncoding(cfg.OutputFormat),
		}
	}
	return req
}

func inworldFormat(enc Encoding) AudioFormat {
	if enc == EncodingMP3 || enc == "" {
		return AudioFormat{Encoding: EncodingMP3, SampleRate: 44100, Channels: 1}
	}
	return pcmFormat(enc)
}

// Synthesize posts text to the voice endpoint and decodes audioContent.
func (p *Inworld) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	resp, err := p.post(ctx, p.client, "/voice", text)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out inworldResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, WrapError(providerInworld, fmt.Errorf("decode response: %w", err))
	}
	if out.AudioContent == "" {
		return nil, WrapError(providerInworld, ErrEmptyAudio)
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, WrapError(providerInworld, fmt.Errorf("decode audio: %w", err))
	}
	latency := time.Since(start).Milliseconds()

	p.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", p.config.VoiceID,
	)

	format := inworldFormat(p.config.OutputFormat)
	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  format.Duration(len(audio)),
		CharCount: len(text),
		LatencyMs: latency,
		Provider:  providerInworld,
	}, nil
}

// Stream posts to the streaming endpoint, which answers with one JSON
// object per line, each carrying a base64 audio chunk.
func (p *Inworld) Stream(ctx context.Context, text string) (AudioStream, error) {
	resp, err := p.post(ctx, p.stream, "/voice:stream", text)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &inworldStream{
		body:    resp.Body,
		scanner: sc,
		format:  inworldFormat(p.config.OutputFormat),
	}, nil
}

func (p *Inworld) post(ctx context.Context, client *http.Client, path, text string) (*http.Response, error) {
	body, err := json.Marshal(newInworldRequest(p.config, text))
	if err != nil {
		return nil, WrapError(providerInworld, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerInworld, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Basic "+p.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, WrapError(providerInworld, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, provider.ReadError(providerInworld, resp)
	}
	return resp, nil
}

// Health lists voices to verify the credential.
func (p *Inworld) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/voices", nil)
	if err != nil {
		return WrapError(providerInworld, err)
	}
	req.Header.Set("Authorization", "Basic "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return WrapError(providerInworld, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return provider.ReadError(providerInworld, resp)
	}
	return nil
}

// Close releases idle connections.
func (p *Inworld) Close() error {
	p.client.CloseIdleConnections()
	p.stream.CloseIdleConnections()
	return nil
}

type inworldStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	format  AudioFormat

	mu     sync.Mutex
	closed bool
}

func (s *inworldStream) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}

	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk inworldChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, WrapError(providerInworld, fmt.Errorf("decode chunk: %w", err))
		}
		if chunk.Error != nil {
			return nil, &APIError{StatusCode: chunk.Error.Code, Message: chunk.Error.Message, Provider: providerInworld}
		}
		if chunk.Result == nil || chunk.Result.AudioContent == "" {
			continue
		}
		audio, err := base64.StdEncoding.DecodeString(chunk.Result.AudioContent)
		if err != nil {
			return nil, WrapError(providerInworld, fmt.Errorf("decode audio: %w", err))
		}
		return audio, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, WrapError(providerInworld, err)
	}
	return nil, nil
}

func (s *inworldStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

func (s *inworldStream) Format() AudioFormat {
	return s.format
}

var _ Provider = (*Inworld)(nil)
