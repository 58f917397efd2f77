package inference

import (
	"context"
	"errors"
	"testing"
)

func TestChainFallback(t *testing.T) {
	ctx := context.Background()

	// First provider fails
	failing := WithError(errors.New("provider 1 failed"))

	// Second provider succeeds
	working := WithReply("From working provider")

	chain, err := NewChain(nil, failing, working)
	if err != nil {
		t.Fatalf("Failed to create chain: %v", err)
	}
	defer chain.Close()

	resp, err := chain.Chat(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("test")},
	})
	if err != nil {
		t.Fatalf("Chain chat failed: %v", err)
	}

	if resp.Message.Content != "From working provider" {
		t.Errorf("Unexpected response: %s", resp.Message.Content)
	}
	if failing.CallCount("Chat") != 1 {
		t.Errorf("Expected failing provider to be tried once, got %d", failing.CallCount("Chat"))
	}
}

func TestChainEmptyReplyAdvances(t *testing.T) {
	ctx := context.Background()

	empty := WithReply("   ")
	working := WithReply("second tier")

	chain, _ := NewChain(nil, empty, working)

	resp, err := chain.Chat(ctx, &ChatRequest{Messages: []Message{NewUserMessage("hi")}})
	if err != nil {
		t.Fatalf("Chain chat failed: %v", err)
	}
	if resp.Text() != "second tier" {
		t.Errorf("Expected second tier reply, got %q", resp.Text())
	}
}

func TestChainAllFail(t *testing.T) {
	ctx := context.Background()

	p1 := WithError(errors.New("provider 1 failed"))
	p2 := WithError(errors.New("provider 2 failed"))

	chain, _ := NewChain(nil, p1, p2)
	defer chain.Close()

	_, err := chain.Chat(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("test")},
	})

	if err == nil {
		t.Fatal("Expected error when all providers fail")
	}

	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("Expected ChainError, got %T", err)
	}

	if len(chainErr.Errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(chainErr.Errors))
	}
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	first := NewMock()
	first.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		cancel()
		return nil, errors.New("interrupted")
	}
	second := WithReply("should not be reached")

	chain, _ := NewChain(nil, first, second)

	_, err := chain.Chat(ctx, &ChatRequest{Messages: []Message{NewUserMessage("x")}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if second.CallCount("Chat") != 0 {
		t.Error("Second provider should not be called after cancellation")
	}
}

func TestChainAudio(t *testing.T) {
	ctx := context.Background()

	// Provider without audio
	noAudio := NewMock()

	// Provider with audio
	hasAudio := NewMock()
	hasAudio.AudioFunc = func(ctx context.Context, req *AudioRequest) (*AudioResponse, error) {
		return &AudioResponse{Content: "hello there"}, nil
	}

	chain, _ := NewChain(nil, noAudio, hasAudio)
	defer chain.Close()

	resp, err := chain.Audio(ctx, &AudioRequest{Audio: []byte{1, 2}, Prompt: "Transcribe"})
	if err != nil {
		t.Fatalf("Chain audio failed: %v", err)
	}

	if resp.Content != "hello there" {
		t.Errorf("Unexpected response: %s", resp.Content)
	}
	if noAudio.CallCount("Audio") != 0 {
		t.Error("Provider without audio capability should be skipped")
	}
}

func TestChainEmbedUnsupported(t *testing.T) {
	chatOnly := WithReply("x")
	chatOnly.EmbedFunc = nil

	chain, _ := NewChain(nil, chatOnly)

	_, err := chain.Embed(context.Background(), &EmbedRequest{Input: []string{"a"}})
	if !errors.Is(err, ErrEmbeddingsNotSupported) {
		t.Errorf("Expected ErrEmbeddingsNotSupported, got %v", err)
	}
}

func TestChainCapabilities(t *testing.T) {
	chatOnly := NewMock()
	chatOnly.EmbedFunc = nil

	audioOnly := NewMock()
	audioOnly.CapabilitiesOverride = &Capabilities{Audio: true}

	chain, _ := NewChain(nil, chatOnly, audioOnly)
	caps := chain.Capabilities()

	if !caps.Chat {
		t.Error("Expected Chat capability from chain")
	}
	if !caps.Audio {
		t.Error("Expected Audio capability from chain")
	}
	if caps.Embeddings {
		t.Error("Did not expect Embeddings capability")
	}
}

func TestChainHealth(t *testing.T) {
	ctx := context.Background()

	healthy := NewMock()
	unhealthy := WithError(errors.New("unhealthy"))

	chain, _ := NewChain(nil, unhealthy, healthy)

	if err := chain.Health(ctx); err != nil {
		t.Errorf("Expected healthy chain, got: %v", err)
	}
}

func TestChainHealthAllUnhealthy(t *testing.T) {
	ctx := context.Background()

	p1 := WithError(errors.New("unhealthy 1"))
	p2 := WithError(errors.New("unhealthy 2"))

	chain, _ := NewChain(nil, p1, p2)

	if err := chain.Health(ctx); err == nil {
		t.Error("Expected error when all providers unhealthy")
	}
}

func TestChainEmpty(t *testing.T) {
	_, err := NewChain(nil)
	if err != ErrProviderUnavailable {
		t.Errorf("Expected ErrProviderUnavailable, got: %v", err)
	}
}

func TestChainStream(t *testing.T) {
	ctx := context.Background()

	failing := WithError(errors.New("stream failed"))

	working := NewMock()
	working.StreamFunc = func(ctx context.Context, req *ChatRequest) (Stream, error) {
		return NewChunkStream("Hello", ", world"), nil
	}

	chain, _ := NewChain(nil, failing, working)

	stream, err := chain.Stream(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("test")},
	})
	if err != nil {
		t.Fatalf("Chain stream failed: %v", err)
	}
	defer stream.Close()

	var content string
	for {
		chunk, err := stream.Recv()
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		if chunk.Done {
			break
		}
		content += chunk.Delta
	}

	if content != "Hello, world" {
		t.Errorf("Unexpected streamed content: %q", content)
	}
}
