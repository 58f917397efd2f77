package httpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		w.WriteHeader(statuses[n])
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func post(ctx context.Context, url string) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(`{"input":"hi"}`))
	}
}

func TestDoWithRetry(t *testing.T) {
	tests := []struct {
		name     string
		statuses []int
		max      int
		want     int
		hits     int32
	}{
		{"recovers after 503", []int{503, 200}, 2, 200, 2},
		{"gives up with last answer", []int{429}, 2, 429, 3},
		{"client error is final", []int{400, 200}, 2, 400, 1},
		{"negative max sends once", []int{500}, -1, 500, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := statusServer(t, tt.statuses...)
			ctx := context.Background()

			resp, err := DoWithRetry(ctx, NewClient(time.Second), Retry{Max: tt.max, Delay: time.Millisecond}, post(ctx, srv.URL))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, tt.hits, hits.Load())
		})
	}
}

func TestDoWithRetryCancelled(t *testing.T) {
	srv, _ := statusServer(t, 503)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DoWithRetry(ctx, NewClient(time.Second), Retry{Max: 3, Delay: time.Hour}, post(ctx, srv.URL))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrDefault(t *testing.T) {
	c := NewClient(time.Second)
	assert.Same(t, c, OrDefault(c, time.Minute))
	assert.Same(t, Client, OrDefault(nil, 0))
	assert.Equal(t, time.Minute, OrDefault(nil, time.Minute).Timeout)
}
