package inference

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/teslashibe/go-sophia/internal/httpc"
	"github.com/teslashibe/go-sophia/internal/provider"
)

const sseDone = "[DONE]"

// Stream opens a server-sent-events chat completion. The stream uses its
// own HTTP client so a long reply is bounded by StreamTimeout rather
// than the shorter request Timeout.
func (c *Client) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	model := req.Model
	if model == "" {
		model = c.config.Model
	}

	body, err := json.Marshal(c.buildChatPayload(req, model, true))
	if err != nil {
		return nil, WrapError(c.name, fmt.Errorf("marshal payload: %w", err))
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, WrapError(c.name, err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := httpc.NewClient(c.config.StreamTimeout).Do(httpReq)
	if err != nil {
		return nil, WrapError(c.name, fmt.Errorf("open stream: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, provider.ReadError(c.name, resp)
	}

	return &sseStream{
		provider: c.name,
		lines:    bufio.NewScanner(resp.Body),
		body:     resp.Body,
	}, nil
}

// sseStream reads "data:" events. A body that ends before the [DONE]
// marker or a finish reason is a broken stream, not a finished one.
type sseStream struct {
	provider string
	lines    *bufio.Scanner
	body     io.ReadCloser
	finished bool
}

func (s *sseStream) Recv() (*StreamChunk, error) {
	if s.finished {
		return &StreamChunk{Done: true}, nil
	}
	for s.lines.Scan() {
		data, ok := strings.CutPrefix(strings.TrimSpace(s.lines.Text()), "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == sseDone {
			s.finished = true
			return &StreamChunk{Done: true}, nil
		}

		var ev sseEvent
		if json.Unmarshal([]byte(data), &ev) != nil || len(ev.Choices) == 0 {
			continue
		}
		choice := ev.Choices[0]
		if choice.FinishReason != "" {
			s.finished = true
		}
		if choice.Delta.Content == "" && !s.finished {
			continue
		}
		return &StreamChunk{
			Delta:        choice.Delta.Content,
			FinishReason: choice.FinishReason,
			Done:         s.finished,
		}, nil
	}
	if err := s.lines.Err(); err != nil {
		return nil, WrapError(s.provider, fmt.Errorf("read stream: %w", err))
	}
	return nil, WrapError(s.provider, io.ErrUnexpectedEOF)
}

func (s *sseStream) Close() error {
	return s.body.Close()
}

type sseEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}
