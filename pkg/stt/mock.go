package stt

import (
	"context"
	"sync"
)

// Mock implements Provider for testing.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked.
	TranscribeFunc func(ctx context.Context, req *Request) (*Result, error)

	// Label is returned by Name. Defaults to "mock".
	Label string

	mu    sync.Mutex
	calls int
}

// NewMock returns a mock that always hears text.
func NewMock(text string) *Mock {
	m := &Mock{}
	m.TranscribeFunc = func(ctx context.Context, req *Request) (*Result, error) {
		return &Result{Text: text, Provider: m.Name()}, nil
	}
	return m
}

// NewFailingMock returns a mock that always fails with err.
func NewFailingMock(err error) *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, req *Request) (*Result, error) {
			return nil, err
		},
	}
}

// Name implements Provider.
func (m *Mock) Name() string {
	if m.Label != "" {
		return m.Label
	}
	return "mock"
}

// Transcribe implements Provider.
func (m *Mock) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.TranscribeFunc == nil {
		return nil, ErrProviderUnavailable
	}
	return m.TranscribeFunc(ctx, req)
}

// Calls returns how many times Transcribe was called.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close implements Provider.
func (m *Mock) Close() error { return nil }

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
