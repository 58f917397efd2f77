package inference

import (
	"errors"

	"github.com/teslashibe/go-sophia/internal/provider"
)

var (
	ErrNoAPIKey               = errors.New("inference: API key required")
	ErrNoModel                = errors.New("inference: model required")
	ErrProviderUnavailable    = errors.New("inference: provider unavailable")
	ErrEmptyResponse          = errors.New("inference: empty response")
	ErrAudioNotSupported      = errors.New("inference: audio not supported by provider")
	ErrStreamingNotSupported  = errors.New("inference: streaming not supported by provider")
	ErrEmbeddingsNotSupported = errors.New("inference: embeddings not supported by provider")
)

type (
	APIError      = provider.APIError
	ProviderError = provider.Error
	ChainError    = provider.ChainError
)

// WrapError tags err with the provider name. A nil err stays nil.
func WrapError(name string, err error) error { return provider.Wrap(name, err) }

// Retryable reports whether err carries a temporary API failure.
func Retryable(err error) bool { return provider.Retryable(err) }
