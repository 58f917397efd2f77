package tts

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-sophia/internal/log"
)

// MinStreamChunk is the least audio, by duration, Stream yields at once.
const MinStreamChunk = 500 * time.Millisecond

// Audio is the pipeline-facing synthesis result.
type Audio struct {
	Data        []byte
	Format      AudioFormat
	Provider    string
	Placeholder bool
}

// MIMEType returns the content type of the audio.
func (a Audio) MIMEType() string {
	return a.Format.Encoding.MIMEType()
}

// Synthesizer is the speech stage of a turn. Synthesize never fails.
type Synthesizer struct {
	provider Provider
	logger   *slog.Logger
	minChunk time.Duration
}

// NewSynthesizer wraps provider, usually a Chain. A nil provider always
// yields the placeholder clip.
func NewSynthesizer(provider Provider, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		provider: provider,
		logger:   log.Component(logger, "tts.synthesizer"),
		minChunk: MinStreamChunk,
	}
}

// Synthesize speaks the sanitized text. When every provider fails it
// returns the placeholder clip.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) Audio {
	text = Sanitize(text)

	if s.provider != nil {
		res, err := s.provider.Synthesize(ctx, text)
		if err == nil && len(res.Audio) > 0 {
			return Audio{Data: res.Audio, Format: res.Format, Provider: res.Provider}
		}
		s.logger.Warn("synthesis failed on all providers, using placeholder", "error", err)
	}

	return Audio{Data: Placeholder(), Format: PlaceholderFormat, Placeholder: true}
}

// Stream speaks text through the provider's stream, calling yield with
// buffers of at least MinStreamChunk of audio; the remainder is flushed
// at the end. A provider or yield error stops the stream and is returned
// so the caller can fall back to Synthesize.
func (s *Synthesizer) Stream(ctx context.Context, text string, yield func(chunk []byte, format AudioFormat) error) error {
	if s.provider == nil {
		return ErrProviderUnavailable
	}

	stream, err := s.provider.Stream(ctx, Sanitize(text))
	if err != nil {
		return err
	}
	defer stream.Close()

	format := stream.Format()
	threshold := int(int64(format.BytesPerSecond()) * int64(s.minChunk) / int64(time.Second))

	var buf bytes.Buffer
	flush := func() error {
		if buf.Len() == 0 {
			return nil
		}
		chunk := append([]byte(nil), buf.Bytes()...)
		buf.Reset()
		return yield(chunk, format)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := stream.Read()
		if err != nil {
			return err
		}
		if chunk == nil {
			break
		}
		buf.Write(chunk)
		if buf.Len() >= threshold {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// Health reports the provider's health.
func (s *Synthesizer) Health(ctx context.Context) error {
	if s.provider == nil {
		return ErrProviderUnavailable
	}
	return s.provider.Health(ctx)
}
