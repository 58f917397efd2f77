package stt

import (
	"errors"

	"github.com/teslashibe/go-sophia/internal/provider"
)

var (
	ErrNoAPIKey            = errors.New("stt: API key required")
	ErrEmptyAudio          = errors.New("stt: empty audio")
	ErrEmptyTranscript     = errors.New("stt: empty transcript")
	ErrProviderUnavailable = errors.New("stt: no providers available")
)

type (
	APIError      = provider.APIError
	ProviderError = provider.Error
	ChainError    = provider.ChainError
)

// WrapError tags err with the provider name. A nil err stays nil.
func WrapError(name string, err error) error { return provider.Wrap(name, err) }
