// Package inference is Sophia's gateway to hosted language models.
//
// Reply generation, emotion classification and knowledge embeddings all
// go through the Provider interface, so a tier can swap vendors without
// touching its caller. Client speaks the OpenAI-compatible API (OpenAI,
// Mistral, Ollama); Anthropic and Gemini have their own adapters. Chain
// tries providers in order and is what the health report probes.
//
//	primary, _ := inference.NewClient(inference.OpenAI(key, "", "gpt-4o-mini", "")...)
//	secondary, _ := inference.NewAnthropic(inference.WithAPIKey(anthropicKey))
//	chain, _ := inference.NewChain(nil, primary, secondary)
//	resp, err := chain.Chat(ctx, &inference.ChatRequest{
//	    Messages: inference.Prompt("You are Sophia.", "What is staking?"),
//	})
package inference

import "context"

// Provider is implemented by every model backend. Methods a backend
// cannot serve fail with the matching Err*NotSupported sentinel and are
// reported false in Capabilities.
type Provider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Stream(ctx context.Context, req *ChatRequest) (Stream, error)
	Embed(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error)

	// Audio answers a text prompt about an audio clip.
	Audio(ctx context.Context, req *AudioRequest) (*AudioResponse, error)

	Capabilities() Capabilities
	Health(ctx context.Context) error
	Close() error
}

// Stream yields a reply incrementally. Recv returns a chunk with Done set
// once the model has finished; an error before that means the reply was
// cut short.
type Stream interface {
	Recv() (*StreamChunk, error)
	Close() error
}

// StreamChunk is one increment of a streamed reply.
type StreamChunk struct {
	Delta        string
	FinishReason string // "stop", "length", ...
	Done         bool
}

// Capabilities reports which Provider methods a backend serves.
type Capabilities struct {
	Chat       bool
	Streaming  bool
	Embeddings bool
	Audio      bool
}

// ChatRequest is a chat completion request. Zero MaxTokens and
// Temperature fall back to the provider's Config.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64

	// JSON asks for a JSON object reply where the API supports it.
	JSON bool
}

// ChatResponse is a completed chat reply.
type ChatResponse struct {
	Message      Message
	FinishReason string
	Usage        Usage
	Model        string
	LatencyMs    int64
}

// Text returns the reply content, or "" for a nil response.
func (r *ChatResponse) Text() string {
	if r == nil {
		return ""
	}
	return r.Message.Content
}

// AudioRequest asks a model about an encoded clip.
type AudioRequest struct {
	Audio     []byte
	MIMEType  string // "audio/wav", "audio/mpeg", ...
	Prompt    string
	Model     string
	MaxTokens int
}

// AudioResponse is the model's answer about a clip.
type AudioResponse struct {
	Content   string
	Usage     Usage
	Model     string
	LatencyMs int64
}

// EmbedRequest embeds each Input string.
type EmbedRequest struct {
	Input []string
	Model string
}

// EmbedResponse holds one vector per input, in input order.
type EmbedResponse struct {
	Embeddings [][]float64
	Usage      Usage
	LatencyMs  int64
}

// Usage is token accounting as reported by the API.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
