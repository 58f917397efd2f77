package tts

import (
	"errors"

	"github.com/teslashibe/go-sophia/internal/provider"
)

var (
	ErrNoAPIKey            = errors.New("tts: API key required")
	ErrNoVoiceID           = errors.New("tts: voice ID required")
	ErrProviderUnavailable = errors.New("tts: no providers available")
	ErrEmptyAudio          = errors.New("tts: empty audio")
	ErrStreamClosed        = errors.New("tts: stream closed")
)

type (
	APIError      = provider.APIError
	ProviderError = provider.Error
	ChainError    = provider.ChainError
)

// WrapError tags err with the provider name. A nil err stays nil.
func WrapError(name string, err error) error { return provider.Wrap(name, err) }
