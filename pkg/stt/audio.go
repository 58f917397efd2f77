package stt

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-audio/wav"
)

// Format describes an audio payload.
type Format struct {
	MIMEType string
	Ext      string
	Duration time.Duration // zero when unknown
}

// Probe sniffs the container of audio. WAV headers are parsed to recover
// the duration; other formats fall back to content sniffing.
func Probe(audio []byte) Format {
	if len(audio) >= 12 && string(audio[:4]) == "RIFF" && string(audio[8:12]) == "WAVE" {
		f := Format{MIMEType: "audio/wav", Ext: ".wav"}
		dec := wav.NewDecoder(bytes.NewReader(audio))
		if dec.IsValidFile() {
			if d, err := dec.Duration(); err == nil {
				f.Duration = d
			}
		}
		return f
	}

	switch {
	case len(audio) >= 3 && string(audio[:3]) == "ID3",
		len(audio) >= 2 && audio[0] == 0xFF && audio[1]&0xE0 == 0xE0:
		return Format{MIMEType: "audio/mpeg", Ext: ".mp3"}
	case len(audio) >= 4 && string(audio[:4]) == "OggS":
		return Format{MIMEType: "audio/ogg", Ext: ".ogg"}
	case len(audio) >= 4 && bytes.Equal(audio[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return Format{MIMEType: "audio/webm", Ext: ".webm"}
	}

	mime := http.DetectContentType(audio)
	if mime == "application/octet-stream" {
		mime = "audio/wav"
	}
	return Format{MIMEType: mime, Ext: ".wav"}
}

// normalize fills in MIMEType and Filename from the audio when unset.
func (r *Request) normalize() {
	if r.MIMEType != "" && r.Filename != "" {
		return
	}
	f := Probe(r.Audio)
	if r.MIMEType == "" {
		r.MIMEType = f.MIMEType
	}
	if r.Filename == "" {
		r.Filename = "audio" + f.Ext
	}
}
