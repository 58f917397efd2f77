package inference

import (
	"context"
	"sync"
)

// Mock is a scriptable Provider. A nil Func field makes that method fail
// with the matching unsupported error. Every call is counted and chat
// requests are kept so tests can assert on the prompt that was sent.
type Mock struct {
	ChatFunc   func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	StreamFunc func(ctx context.Context, req *ChatRequest) (Stream, error)
	AudioFunc  func(ctx context.Context, req *AudioRequest) (*AudioResponse, error)
	EmbedFunc  func(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error)
	HealthFunc func(ctx context.Context) error

	// CapabilitiesOverride replaces the capabilities derived from the
	// Func fields.
	CapabilitiesOverride *Capabilities

	mu       sync.Mutex
	counts   map[string]int
	requests []*ChatRequest
}

// NewMock returns a mock that answers every chat with "Mock response" and
// embeds every input as the same unit vector.
func NewMock() *Mock {
	return WithReply("Mock response")
}

// WithReply returns a mock whose Chat and Stream answer with text.
func WithReply(text string) *Mock {
	return &Mock{
		ChatFunc: func(context.Context, *ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{
				Message:      NewAssistantMessage(text),
				FinishReason: "stop",
				Usage:        Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			}, nil
		},
		EmbedFunc: func(_ context.Context, req *EmbedRequest) (*EmbedResponse, error) {
			vecs := make([][]float64, len(req.Input))
			for i := range vecs {
				vecs[i] = make([]float64, 8)
				vecs[i][0] = 1
			}
			return &EmbedResponse{Embeddings: vecs}, nil
		},
	}
}

// WithError returns a mock whose every method fails with err.
func WithError(err error) *Mock {
	return &Mock{
		ChatFunc:   func(context.Context, *ChatRequest) (*ChatResponse, error) { return nil, err },
		StreamFunc: func(context.Context, *ChatRequest) (Stream, error) { return nil, err },
		AudioFunc:  func(context.Context, *AudioRequest) (*AudioResponse, error) { return nil, err },
		EmbedFunc:  func(context.Context, *EmbedRequest) (*EmbedResponse, error) { return nil, err },
		HealthFunc: func(context.Context) error { return err },
	}
}

func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.record("Chat", req)
	if m.ChatFunc == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m.ChatFunc(ctx, req)
}

// Stream calls StreamFunc, or replays the Chat reply as one chunk.
func (m *Mock) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	m.record("Stream", req)
	switch {
	case m.StreamFunc != nil:
		return m.StreamFunc(ctx, req)
	case m.ChatFunc != nil:
		resp, err := m.ChatFunc(ctx, req)
		if err != nil {
			return nil, err
		}
		return NewChunkStream(resp.Text()), nil
	}
	return nil, WrapError("mock", ErrStreamingNotSupported)
}

func (m *Mock) Audio(ctx context.Context, req *AudioRequest) (*AudioResponse, error) {
	m.record("Audio", nil)
	if m.AudioFunc == nil {
		return nil, WrapError("mock", ErrAudioNotSupported)
	}
	return m.AudioFunc(ctx, req)
}

func (m *Mock) Embed(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error) {
	m.record("Embed", nil)
	if m.EmbedFunc == nil {
		return nil, WrapError("mock", ErrEmbeddingsNotSupported)
	}
	return m.EmbedFunc(ctx, req)
}

func (m *Mock) Capabilities() Capabilities {
	if m.CapabilitiesOverride != nil {
		return *m.CapabilitiesOverride
	}
	return Capabilities{
		Chat:       m.ChatFunc != nil,
		Streaming:  m.StreamFunc != nil || m.ChatFunc != nil,
		Embeddings: m.EmbedFunc != nil,
		Audio:      m.AudioFunc != nil,
	}
}

func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", nil)
	if m.HealthFunc == nil {
		return nil
	}
	return m.HealthFunc(ctx)
}

func (m *Mock) Close() error { return nil }

func (m *Mock) record(method string, req *ChatRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[method]++
	if req != nil {
		m.requests = append(m.requests, req)
	}
}

// CallCount returns how many times method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[method]
}

// Requests returns the chat and stream requests received, oldest first.
func (m *Mock) Requests() []*ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// chunkStream replays fixed chunks, then reports Done.
type chunkStream struct {
	chunks []string
	pos    int
}

// NewChunkStream returns a Stream that yields each chunk in order.
func NewChunkStream(chunks ...string) Stream {
	return &chunkStream{chunks: chunks}
}

func (s *chunkStream) Recv() (*StreamChunk, error) {
	if s.pos >= len(s.chunks) {
		return &StreamChunk{FinishReason: "stop", Done: true}, nil
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return &StreamChunk{Delta: chunk}, nil
}

func (s *chunkStream) Close() error { return nil }

var _ Provider = (*Mock)(nil)
