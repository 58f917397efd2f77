package tts

import (
	"errors"
	"io"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Placeholder audio parameters: half a second of 16 kHz mono PCM16 silence.
const (
	placeholderRate    = 16000
	placeholderSamples = placeholderRate / 2
)

// PlaceholderFormat is the format of Placeholder.
var PlaceholderFormat = AudioFormat{
	Encoding:   EncodingWAV,
	SampleRate: placeholderRate,
	Channels:   1,
	BitDepth:   16,
}

var placeholder = sync.OnceValue(func() []byte {
	w := &writeSeeker{}
	enc := wav.NewEncoder(w, placeholderRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: placeholderRate},
		Data:           make([]int, placeholderSamples),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		panic("tts: encode placeholder: " + err.Error())
	}
	if err := enc.Close(); err != nil {
		panic("tts: close placeholder: " + err.Error())
	}
	return w.buf
})

// Placeholder returns a short silent WAV clip used when every provider
// fails. The returned slice is a fresh copy.
func Placeholder() []byte {
	return append([]byte(nil), placeholder()...)
}

// writeSeeker is an in-memory io.WriteSeeker for the WAV encoder, which
// seeks back to patch the header sizes.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("tts: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("tts: negative position")
	}
	w.pos = int(abs)
	return abs, nil
}
