// Package httpc provides shared HTTP clients with sensible defaults.
// Provider packages use these instead of http.DefaultClient so every
// outbound call has a timeout.
package httpc

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// Client is a shared HTTP client for short provider calls.
var Client = NewClient(DefaultTimeout)

// NewClient creates a new HTTP client with the specified timeout.
// A zero timeout disables the overall deadline, which streaming callers
// rely on together with a request context.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(),
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// OrDefault returns c, or a fresh client with the given timeout when c is nil.
func OrDefault(c *http.Client, timeout time.Duration) *http.Client {
	if c != nil {
		return c
	}
	if timeout <= 0 {
		return Client
	}
	return NewClient(timeout)
}

// Retry configures DoWithRetry. Attempt n (from 1) waits Delay*n first.
type Retry struct {
	Max   int
	Delay time.Duration
	Log   *slog.Logger
}

// DoWithRetry sends the request built by newReq, resending after a
// transport error or a 429/5xx answer until r.Max extra attempts are
// spent. The last response is returned whatever its status, so callers
// parse errors the same way retried or not.
func DoWithRetry(ctx context.Context, c *http.Client, r Retry, newReq func() (*http.Request, error)) (*http.Response, error) {
	if r.Max < 0 {
		r.Max = 0
	}
	var lastErr error
	for attempt := 0; attempt <= r.Max; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.Delay * time.Duration(attempt)):
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := c.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			r.warn("request failed, retrying", "attempt", attempt+1, "error", err)
			continue
		}

		temporary := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		if !temporary || attempt == r.Max {
			return resp, nil
		}
		resp.Body.Close()
		r.warn("retrying request", "attempt", attempt+1, "status", resp.StatusCode)
	}
	return nil, lastErr
}

func (r Retry) warn(msg string, args ...any) {
	if r.Log != nil {
		r.Log.Warn(msg, args...)
	}
}
