// Package provider holds what the inference, stt and tts packages share:
// the errors a vendor call can fail with and the ordered fallback loop
// their chains run.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// ErrSkip is returned by a First callback to pass over a provider that
// cannot serve the operation. Skips are not failures.
var ErrSkip = errors.New("provider: skipped")

// APIError is a non-2xx answer from a vendor API.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, msg)
}

// Temporary reports whether the same request may succeed later:
// throttling and server-side failures.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Rejected reports whether the vendor refused the credentials.
func (e *APIError) Rejected() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// ReadError turns a non-2xx response into an APIError. It understands the
// OpenAI and Mistral envelope {"error":{"message","code"}}, Google's
// {"error":{"message","status"}} and a bare {"message"}; anything else
// becomes the raw body.
func ReadError(name string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Provider: name, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}

	var env struct {
		Message string `json:"message"`
		Error   struct {
			Message string          `json:"message"`
			Code    json.RawMessage `json:"code"`
			Status  string          `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) != nil {
		return apiErr
	}
	switch {
	case env.Error.Message != "":
		apiErr.Message = env.Error.Message
		apiErr.Code = env.Error.Status
		var code string
		if apiErr.Code == "" && json.Unmarshal(env.Error.Code, &code) == nil {
			apiErr.Code = code
		}
	case env.Message != "":
		apiErr.Message = env.Message
	}
	return apiErr
}

// Retryable reports whether err carries a temporary API failure.
func Retryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}

// Error tags a failure with the provider that produced it.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string { return e.Provider + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with name. A nil err stays nil.
func Wrap(name string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Provider: name, Err: err}
}

// ChainError is returned when every provider a chain tried failed.
// Errors are in attempt order.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "chain failed"
	case 1:
		return "chain failed: " + e.Errors[0].Error()
	}
	parts := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("all %d providers failed: %s", len(e.Errors), strings.Join(parts, "; "))
}

// Unwrap exposes every attempt to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error { return e.Errors }

// Last returns the final attempt's error, or nil.
func (e *ChainError) Last() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

// First calls try on each provider in order and returns the first
// success. A cancelled ctx stops the walk with ctx.Err(). When every
// provider was skipped First returns ErrSkip; otherwise the failures come
// back as a *ChainError.
func First[P, T any](ctx context.Context, logger *slog.Logger, op string, providers []P, try func(P) (T, error)) (T, error) {
	var zero T
	var errs []error

	for i, p := range providers {
		out, err := try(p)
		if err == nil {
			if len(errs) > 0 {
				logger.Info("fallback provider succeeded", "op", op, "provider_index", i)
			}
			return out, nil
		}
		if errors.Is(err, ErrSkip) {
			continue
		}

		errs = append(errs, err)
		logger.Warn("provider failed, trying next", "op", op, "provider_index", i, "error", err)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
	}

	if len(errs) == 0 {
		return zero, ErrSkip
	}
	return zero, &ChainError{Errors: errs}
}

// Healthy probes every provider and fails only when none answers.
func Healthy[P any](providers []P, probe func(P) error) error {
	var errs []error
	for _, p := range providers {
		err := probe(p)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return &ChainError{Errors: errs}
}

// CloseAll closes every provider and joins the failures.
func CloseAll[P io.Closer](providers []P) error {
	var errs []error
	for _, p := range providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
