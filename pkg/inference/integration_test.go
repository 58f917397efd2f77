//go:build integration

package inference

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

// Live provider checks. Run with:
//
//	go test -tags=integration -v ./pkg/inference/...
//
// Each provider is skipped when its key is not set.

const liveSystem = "You are Sophia, a friendly DeFi guide. Answer in one short sentence."

func liveProviders(t *testing.T) map[string]Provider {
	t.Helper()
	out := map[string]Provider{}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c, err := NewClient(OpenAI(key, "", "", "text-embedding-3-small")...); err == nil {
			out["openai"] = c
		}
	}
	if key := os.Getenv("MISTRAL_API_KEY"); key != "" {
		if c, err := NewClient(Mistral(key, "")...); err == nil {
			out["mistral"] = c
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		if c, err := NewAnthropic(WithAPIKey(key)); err == nil {
			out["anthropic"] = c
		}
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		if c, err := NewGemini(WithAPIKey(key)); err == nil {
			out["gemini"] = c
		}
	}
	if len(out) == 0 {
		t.Skip("no provider API keys set")
	}
	t.Cleanup(func() {
		for _, p := range out {
			p.Close()
		}
	})
	return out
}

func TestLiveChat(t *testing.T) {
	for name, p := range liveProviders(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			resp, err := p.Chat(ctx, &ChatRequest{
				Messages:  Prompt(liveSystem, "What is staking?"),
				MaxTokens: 60,
			})
			if err != nil {
				t.Fatalf("Chat failed: %v", err)
			}
			if strings.TrimSpace(resp.Text()) == "" {
				t.Error("Expected a non-empty reply")
			}
			t.Logf("%s (%dms): %s", name, resp.LatencyMs, resp.Text())
		})
	}
}

func TestLiveStream(t *testing.T) {
	for name, p := range liveProviders(t) {
		if !p.Capabilities().Streaming {
			continue
		}
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			stream, err := p.Stream(ctx, &ChatRequest{
				Messages:  Prompt(liveSystem, "What is a liquidity pool?"),
				MaxTokens: 80,
			})
			if err != nil {
				t.Fatalf("Stream failed: %v", err)
			}
			defer stream.Close()

			var sb strings.Builder
			chunks := 0
			for {
				chunk, err := stream.Recv()
				if err != nil {
					t.Fatalf("Recv failed after %d chunks: %v", chunks, err)
				}
				sb.WriteString(chunk.Delta)
				if chunk.Done {
					break
				}
				chunks++
			}
			if sb.Len() == 0 {
				t.Error("Expected streamed text")
			}
			t.Logf("%s: %d chunks: %s", name, chunks, sb.String())
		})
	}
}

func TestLiveChainFallback(t *testing.T) {
	var live []Provider
	for _, p := range liveProviders(t) {
		live = append(live, p)
	}
	chain, err := NewChain(nil, append([]Provider{WithError(ErrProviderUnavailable)}, live...)...)
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := chain.Chat(ctx, &ChatRequest{Messages: Prompt(liveSystem, "Say 'fallback works'.")})
	if err != nil {
		t.Fatalf("Chain chat failed: %v", err)
	}
	t.Logf("via fallback: %s", resp.Text())
}
