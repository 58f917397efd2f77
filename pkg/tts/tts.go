// Package tts turns reply text into speech.
//
// Providers (Inworld over HTTP or websocket, OpenAI, Mock) implement
// Provider and are tried in order by a Chain. Synthesizer is the pipeline
// stage on top: it sanitizes text, never fails, and buffers streamed audio
// into chunks of at least half a second.
//
//	primary, _ := tts.NewInworld(tts.WithAPIKey(os.Getenv("INWORLD_API_KEY")))
//	secondary, _ := tts.NewOpenAI(tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	chain, _ := tts.NewChain(nil, primary, secondary)
//	synth := tts.NewSynthesizer(chain, logger)
//	audio := synth.Synthesize(ctx, "Staking locks tokens to earn rewards.")
package tts

import (
	"context"
	"time"
)

// Provider is a text-to-speech backend.
type Provider interface {
	// Name identifies the provider in logs and results.
	Name() string

	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Stream converts text to audio, returning chunks as they arrive.
	Stream(ctx context.Context, text string) (AudioStream, error)

	// Health checks provider connectivity and credentials.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioStream is a streaming audio response.
// Callers read until Read returns nil, then call Close.
type AudioStream interface {
	// Read returns the next audio chunk, or nil when the stream is done.
	Read() ([]byte, error)

	Close() error

	Format() AudioFormat
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	Audio     []byte
	Format    AudioFormat
	Duration  time.Duration
	CharCount int
	LatencyMs int64
	Provider  string
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding `json:"encoding"`
	SampleRate int      `json:"sample_rate"`
	Channels   int      `json:"channels"`
	BitDepth   int      `json:"bit_depth"`
}

// Encoding represents audio encoding types.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000"
	EncodingPCM22 Encoding = "pcm_22050"
	EncodingPCM24 Encoding = "pcm_24000"
	EncodingPCM44 Encoding = "pcm_44100"
	EncodingWAV   Encoding = "wav"
	EncodingMP3   Encoding = "mp3_44100_128"
)

// mp3BytesPerSecond is the byte rate of 128 kbps MP3.
const mp3BytesPerSecond = 128_000 / 8

// MIMEType returns the content type for the encoding.
func (e Encoding) MIMEType() string {
	switch e {
	case EncodingMP3:
		return "audio/mpeg"
	case EncodingWAV:
		return "audio/wav"
	default:
		return "audio/L16"
	}
}

// SampleRateFromEncoding extracts the sample rate from an encoding type.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22:
		return 22050
	case EncodingPCM24:
		return 24000
	case EncodingPCM44, EncodingMP3:
		return 44100
	default:
		return 24000
	}
}

// BytesPerSecond is the playback byte rate of f, used to size stream
// buffers. Unknown formats are treated as 24 kHz mono PCM16.
func (f AudioFormat) BytesPerSecond() int {
	if f.Encoding == EncodingMP3 {
		return mp3BytesPerSecond
	}
	rate := f.SampleRate
	if rate <= 0 {
		rate = SampleRateFromEncoding(f.Encoding)
	}
	channels := f.Channels
	if channels <= 0 {
		channels = 1
	}
	depth := f.BitDepth
	if depth <= 0 {
		depth = 16
	}
	return rate * channels * depth / 8
}

// Duration estimates the playback duration of n bytes in format f.
func (f AudioFormat) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// pcmFormat returns the PCM16 mono format at rate.
func pcmFormat(enc Encoding) AudioFormat {
	return AudioFormat{
		Encoding:   enc,
		SampleRate: SampleRateFromEncoding(enc),
		Channels:   1,
		BitDepth:   16,
	}
}

// chunkStream yields a fixed list of chunks, skipping empty ones. err,
// when set, is returned after the last chunk instead of end of stream.
type chunkStream struct {
	chunks [][]byte
	next   int
	err    error
	format AudioFormat
}

func (s *chunkStream) Read() ([]byte, error) {
	for s.next < len(s.chunks) {
		c := s.chunks[s.next]
		s.next++
		if len(c) > 0 {
			return c, nil
		}
	}
	return nil, s.err
}

func (s *chunkStream) Close() error        { return nil }
func (s *chunkStream) Format() AudioFormat { return s.format }
