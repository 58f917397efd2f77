package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-sophia/internal/log"
)

const (
	inworldWSURL      = "wss://api.inworld.ai/tts/v1/voice:streamBidirectional"
	providerInworldWS = "inworld_ws"
)

// InworldWS streams Inworld synthesis over a websocket, one connection per
// utterance. The client sends a single request frame; the server answers
// with JSON frames carrying base64 audio, or binary frames of raw audio,
// and closes the connection when done.
type InworldWS struct {
	config *Config
	logger *slog.Logger
	url    string
	dialer *websocket.Dialer
}

// NewInworldWS creates a websocket Inworld provider.
func NewInworldWS(opts ...Option) (*InworldWS, error) {
	cfg := DefaultConfig()
	cfg.OutputFormat = EncodingPCM24
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	url := cfg.BaseURL
	if url == "" {
		url = inworldWSURL
	}

	return &InworldWS{
		config: cfg,
		logger: log.Component(cfg.Logger, "tts.inworld_ws"),
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// Name implements Provider.
func (p *InworldWS) Name() string { return providerInworldWS }

// Stream dials, sends the request and returns the open stream.
func (p *InworldWS) Stream(ctx context.Context, text string) (AudioStream, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Basic "+p.config.APIKey)

	conn, resp, err := p.dialer.DialContext(ctx, p.url, headers)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: err.Error(), Provider: providerInworldWS}
		}
		return nil, WrapError(providerInworldWS, fmt.Errorf("dial: %w", err))
	}

	if err := conn.WriteJSON(newInworldRequest(p.config, text)); err != nil {
		conn.Close()
		return nil, WrapError(providerInworldWS, fmt.Errorf("send request: %w", err))
	}

	s := &wsStream{
		conn:   conn,
		format: inworldFormat(p.config.OutputFormat),
		done:   make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	p.logger.Debug("stream opened", "chars", len(text), "voice", p.config.VoiceID)
	return s, nil
}

// Synthesize drains a stream into one buffer.
func (p *InworldWS) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()
	stream, err := p.Stream(ctx, text)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var buf bytes.Buffer
	for {
		chunk, err := stream.Read()
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			break
		}
		buf.Write(chunk)
	}
	if buf.Len() == 0 {
		return nil, WrapError(providerInworldWS, ErrEmptyAudio)
	}

	format := stream.Format()
	return &AudioResult{
		Audio:     buf.Bytes(),
		Format:    format,
		Duration:  format.Duration(buf.Len()),
		CharCount: len(text),
		LatencyMs: time.Since(start).Milliseconds(),
		Provider:  providerInworldWS,
	}, nil
}

// Health verifies the websocket endpoint accepts the credential.
func (p *InworldWS) Health(ctx context.Context) error {
	headers := http.Header{}
	headers.Set("Authorization", "Basic "+p.config.APIKey)

	conn, resp, err := p.dialer.DialContext(ctx, p.url, headers)
	if err != nil {
		if resp != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: err.Error(), Provider: providerInworldWS}
		}
		return WrapError(providerInworldWS, fmt.Errorf("health check: %w", err))
	}
	return conn.Close()
}

// Close is a no-op; connections are per stream.
func (p *InworldWS) Close() error {
	return nil
}

type wsStream struct {
	conn   *websocket.Conn
	format AudioFormat

	once sync.Once
	done chan struct{}
}

func (s *wsStream) Read() ([]byte, error) {
	for {
		select {
		case <-s.done:
			return nil, ErrStreamClosed
		default:
		}

		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, nil
			}
			select {
			case <-s.done:
				return nil, ErrStreamClosed
			default:
			}
			return nil, WrapError(providerInworldWS, err)
		}

		if kind == websocket.BinaryMessage {
			if len(data) == 0 {
				continue
			}
			return data, nil
		}

		var frame struct {
			inworldChunk
			Done bool `json:"done"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, WrapError(providerInworldWS, fmt.Errorf("decode frame: %w", err))
		}
		if frame.Error != nil {
			return nil, &APIError{StatusCode: frame.Error.Code, Message: frame.Error.Message, Provider: providerInworldWS}
		}
		if frame.Done {
			return nil, nil
		}
		if frame.Result == nil || frame.Result.AudioContent == "" {
			continue
		}
		audio, err := base64.StdEncoding.DecodeString(frame.Result.AudioContent)
		if err != nil {
			return nil, WrapError(providerInworldWS, fmt.Errorf("decode audio: %w", err))
		}
		return audio, nil
	}
}

func (s *wsStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}

func (s *wsStream) Format() AudioFormat {
	return s.format
}

var _ Provider = (*InworldWS)(nil)
