package stt

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-sophia/internal/log"
)

// Transcriber is the pipeline-facing speech-to-text stage. It never
// fails: when every provider fails it returns an empty transcript.
type Transcriber struct {
	provider Provider
	logger   *slog.Logger
}

// NewTranscriber wraps provider, usually a Chain. A nil provider yields a
// transcriber that always returns "".
func NewTranscriber(provider Provider, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		provider: provider,
		logger:   log.Component(logger, "stt.transcriber"),
	}
}

// Transcribe returns the transcript and the provider that produced it.
// Both are empty on total failure.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, string) {
	if t.provider == nil || len(audio) == 0 {
		return "", ""
	}

	res, err := t.provider.Transcribe(ctx, &Request{Audio: audio})
	if err != nil {
		t.logger.Warn("transcription failed on all providers", "error", err)
		return "", ""
	}
	return res.Text, res.Provider
}
