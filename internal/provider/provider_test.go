package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-sophia/internal/log"
)

type fake struct {
	name  string
	reply string
	err   error
	calls int
}

func try(f *fake) (string, error) {
	f.calls++
	if f.err != nil {
		return "", Wrap(f.name, f.err)
	}
	return f.reply, nil
}

func TestFirstFallsThrough(t *testing.T) {
	down := &fake{name: "openai", err: &APIError{Provider: "openai", StatusCode: 503, Message: "overloaded"}}
	up := &fake{name: "anthropic", reply: "staking locks tokens"}
	spare := &fake{name: "gemini", reply: "unused"}

	got, err := First(context.Background(), log.Discard(), "chat", []*fake{down, up, spare}, try)
	require.NoError(t, err)
	assert.Equal(t, "staking locks tokens", got)
	assert.Equal(t, 1, down.calls)
	assert.Equal(t, 0, spare.calls)
}

func TestFirstAllFail(t *testing.T) {
	a := &fake{name: "a", err: errors.New("timeout")}
	b := &fake{name: "b", err: &APIError{Provider: "b", StatusCode: 429, Message: "slow down"}}

	_, err := First(context.Background(), log.Discard(), "chat", []*fake{a, b}, try)

	var chainErr *ChainError
	require.ErrorAs(t, err, &chainErr)
	assert.Len(t, chainErr.Errors, 2)
	assert.True(t, Retryable(err), "the 429 behind the chain should be visible")
	assert.EqualError(t, chainErr.Last(), "b: b returned 429: slow down")
	assert.Contains(t, err.Error(), "all 2 providers failed")
}

func TestFirstSkips(t *testing.T) {
	skip := func(*fake) (string, error) { return "", ErrSkip }
	_, err := First(context.Background(), log.Discard(), "embed", []*fake{{}, {}}, skip)
	assert.ErrorIs(t, err, ErrSkip)

	_, err = First(context.Background(), log.Discard(), "embed", nil, try)
	assert.ErrorIs(t, err, ErrSkip)
}

func TestFirstStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &fake{name: "a", err: errors.New("boom")}
	second := &fake{name: "b", reply: "late"}

	_, err := First(ctx, log.Discard(), "chat", []*fake{first, second}, func(f *fake) (string, error) {
		cancel()
		return try(f)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, second.calls)
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		status    int
		temporary bool
		rejected  bool
	}{
		{429, true, false},
		{500, true, false},
		{503, true, false},
		{401, false, true},
		{403, false, true},
		{400, false, false},
	}
	for _, tt := range tests {
		err := &APIError{Provider: "inworld", StatusCode: tt.status}
		assert.Equal(t, tt.temporary, err.Temporary(), "status %d", tt.status)
		assert.Equal(t, tt.rejected, err.Rejected(), "status %d", tt.status)
		assert.Equal(t, tt.temporary, Retryable(Wrap("inworld", err)), "status %d", tt.status)
	}

	withCode := &APIError{Provider: "mistral", StatusCode: 400, Code: "invalid_model", Message: "unknown model"}
	assert.EqualError(t, withCode, "mistral returned 400: invalid_model: unknown model")
	assert.False(t, Retryable(errors.New("plain")))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("x", nil))

	inner := errors.New("connection reset")
	err := Wrap("inworld", inner)
	assert.ErrorIs(t, err, inner)
	assert.EqualError(t, err, "inworld: connection reset")
}

func TestHealthy(t *testing.T) {
	probe := func(f *fake) error { _, err := try(f); return err }

	assert.NoError(t, Healthy([]*fake{{err: errors.New("down")}, {reply: "ok"}}, probe))
	assert.NoError(t, Healthy([]*fake{}, probe))

	err := Healthy([]*fake{{name: "a", err: errors.New("down")}}, probe)
	var chainErr *ChainError
	assert.ErrorAs(t, err, &chainErr)
}

type closer struct {
	err    error
	closed bool
}

func (c *closer) Close() error { c.closed = true; return c.err }

func TestCloseAll(t *testing.T) {
	first := &closer{err: errors.New("socket busy")}
	second := &closer{}

	err := CloseAll([]*closer{first, second})
	assert.ErrorIs(t, err, first.err)
	assert.True(t, second.closed, "a failed close must not stop the rest")
	assert.NoError(t, CloseAll([]*closer{{}}))
}

func TestReadError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
		code    string
	}{
		{"openai", `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, "Rate limit reached", "rate_limit_exceeded"},
		{"google", `{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`, "Quota exceeded", "RESOURCE_EXHAUSTED"},
		{"bare", `{"message":"bad key"}`, "bad key", ""},
		{"text", "upstream timeout\n", "upstream timeout", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: 429, Body: io.NopCloser(strings.NewReader(tt.body))}
			err := ReadError(tt.name, resp)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.name, err.Provider)
			assert.True(t, err.Temporary())
		})
	}
}
