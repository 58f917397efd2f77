package stt

import (
	"context"
	"strings"
	"time"

	"github.com/teslashibe/go-sophia/pkg/inference"
)

const providerGemini = "gemini"

const transcribePrompt = "Transcribe this audio. Return only the transcription text, no extra words."

// Gemini transcribes by asking an audio-capable model for a verbatim
// transcript.
type Gemini struct {
	provider inference.Provider
	model    string
}

// NewGemini wraps an audio-capable inference provider.
func NewGemini(provider inference.Provider, model string) *Gemini {
	return &Gemini{provider: provider, model: model}
}

// Name implements Provider.
func (g *Gemini) Name() string { return providerGemini }

// Transcribe implements Provider.
func (g *Gemini) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	if len(req.Audio) == 0 {
		return nil, WrapError(providerGemini, ErrEmptyAudio)
	}
	req.normalize()
	start := time.Now()

	resp, err := g.provider.Audio(ctx, &inference.AudioRequest{
		Audio:    req.Audio,
		MIMEType: req.MIMEType,
		Prompt:   transcribePrompt,
		Model:    g.model,
	})
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	return &Result{
		Text:      strings.TrimSpace(resp.Content),
		Provider:  providerGemini,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Close releases resources.
func (g *Gemini) Close() error {
	return g.provider.Close()
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)
