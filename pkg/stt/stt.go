// Package stt provides speech-to-text with provider fallback.
//
// Providers implement a single Transcribe call. A Chain tries them in
// order, and a Transcriber wraps the chain so callers always get a string,
// empty when every provider failed.
package stt

import "context"

// Provider converts recorded speech into text.
type Provider interface {
	// Name identifies the provider in logs and results.
	Name() string

	// Transcribe returns the spoken text in req.Audio.
	Transcribe(ctx context.Context, req *Request) (*Result, error)

	// Close releases resources.
	Close() error
}

// Request is one utterance to transcribe.
type Request struct {
	// Audio is the encoded recording (WAV, MP3, WebM, ...).
	Audio []byte

	// Filename is sent to multipart APIs that infer format from extension.
	Filename string

	// MIMEType describes Audio. Detected when empty.
	MIMEType string

	// Language is an optional ISO-639-1 hint.
	Language string
}

// Result is a transcription.
type Result struct {
	Text      string
	Provider  string
	LatencyMs int64
}
