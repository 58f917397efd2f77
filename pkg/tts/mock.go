package tts

import (
	"context"
	"sync"
	"time"
)

// bytesPerChar is 20ms of 24kHz mono PCM16, the pace the default mock
// "speaks" at.
const bytesPerChar = 960

// Mock is a scriptable Provider. It remembers every text it was asked to
// speak so tests can check what reached the voice.
type Mock struct {
	// Label is returned by Name and stamped on results. Defaults to "mock".
	Label string

	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)

	// StreamFunc overrides Stream. When nil, Stream yields the
	// SynthesizeFunc result as a single chunk.
	StreamFunc func(ctx context.Context, text string) (AudioStream, error)

	HealthFunc func(ctx context.Context) error

	mu     sync.Mutex
	counts map[string]int
	spoken []string
}

// NewMock returns a mock that answers with silent PCM whose length grows
// with the text.
func NewMock() *Mock {
	m := &Mock{}
	m.SynthesizeFunc = func(_ context.Context, text string) (*AudioResult, error) {
		return &AudioResult{
			Audio:     make([]byte, len(text)*bytesPerChar),
			Format:    pcmFormat(EncodingPCM24),
			CharCount: len(text),
			Duration:  time.Duration(len(text)) * 20 * time.Millisecond,
			Provider:  m.Name(),
		}, nil
	}
	return m
}

// WithError returns a mock whose every method fails with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, string) (*AudioResult, error) { return nil, err },
		StreamFunc:     func(context.Context, string) (AudioStream, error) { return nil, err },
		HealthFunc:     func(context.Context) error { return err },
	}
}

// NewStreamingMock returns a mock whose Stream yields chunks in order and
// whose Synthesize returns them concatenated.
func NewStreamingMock(format AudioFormat, chunks ...[]byte) *Mock {
	return newChunkMock(format, nil, chunks)
}

// NewBrokenStreamMock is NewStreamingMock with a stream that fails with
// err after the last chunk.
func NewBrokenStreamMock(format AudioFormat, err error, chunks ...[]byte) *Mock {
	return newChunkMock(format, err, chunks)
}

func newChunkMock(format AudioFormat, streamErr error, chunks [][]byte) *Mock {
	m := &Mock{}
	m.SynthesizeFunc = func(_ context.Context, text string) (*AudioResult, error) {
		var all []byte
		for _, c := range chunks {
			all = append(all, c...)
		}
		return &AudioResult{Audio: all, Format: format, CharCount: len(text), Provider: m.Name()}, nil
	}
	m.StreamFunc = func(context.Context, string) (AudioStream, error) {
		return &chunkStream{chunks: chunks, err: streamErr, format: format}, nil
	}
	return m
}

func (m *Mock) Name() string {
	if m.Label == "" {
		return "mock"
	}
	return m.Label
}

func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.record("Synthesize", text)
	if m.SynthesizeFunc == nil {
		return nil, WrapError(m.Name(), ErrProviderUnavailable)
	}
	return m.SynthesizeFunc(ctx, text)
}

func (m *Mock) Stream(ctx context.Context, text string) (AudioStream, error) {
	m.record("Stream", text)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, text)
	}
	if m.SynthesizeFunc == nil {
		return nil, WrapError(m.Name(), ErrProviderUnavailable)
	}
	result, err := m.SynthesizeFunc(ctx, text)
	if err != nil {
		return nil, err
	}
	return &chunkStream{chunks: [][]byte{result.Audio}, format: result.Format}, nil
}

func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", "")
	if m.HealthFunc == nil {
		return nil
	}
	return m.HealthFunc(ctx)
}

func (m *Mock) Close() error { return nil }

func (m *Mock) record(method, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[method]++
	if method != "Health" {
		m.spoken = append(m.spoken, text)
	}
}

// CallCount returns how many times method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[method]
}

// Spoken returns the texts passed to Synthesize and Stream, oldest first.
func (m *Mock) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.spoken...)
}

var _ Provider = (*Mock)(nil)
