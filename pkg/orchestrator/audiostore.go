package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-sophia/pkg/tts"
)

// AudioURLPrefix is the URL path under which FileStore files are served.
const AudioURLPrefix = "/audio"

// AudioStore keeps synthesized replies and returns a reference to them.
type AudioStore interface {
	Put(ctx context.Context, data []byte, format tts.AudioFormat) (string, error)
}

// FileStore writes audio files under dir/prefix.
type FileStore struct {
	dir    string
	prefix string
	now    func() time.Time
}

// NewFileStore creates dir/prefix if needed.
func NewFileStore(dir, prefix string) (*FileStore, error) {
	if dir == "" {
		return nil, ErrNoAudioDir
	}
	if err := os.MkdirAll(filepath.Join(dir, prefix), 0o755); err != nil {
		return nil, fmt.Errorf("orchestrator: create audio dir: %w", err)
	}
	return &FileStore{dir: dir, prefix: prefix, now: time.Now}, nil
}

// Dir returns the root directory files are written under.
func (s *FileStore) Dir() string { return s.dir }

// Put writes data to a new file and returns its URL path.
func (s *FileStore) Put(ctx context.Context, data []byte, format tts.AudioFormat) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := fmt.Sprintf("sophia_%d_%s%s",
		s.now().UnixMilli(), uuid.NewString()[:8], extension(format.Encoding))

	if err := os.WriteFile(filepath.Join(s.dir, s.prefix, name), data, 0o644); err != nil {
		return "", fmt.Errorf("orchestrator: write audio: %w", err)
	}
	return path.Join(AudioURLPrefix, s.prefix, name), nil
}

// DataURI embeds data in a data: URI.
func DataURI(data []byte, format tts.AudioFormat) string {
	return "data:" + format.Encoding.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func extension(e tts.Encoding) string {
	switch e {
	case tts.EncodingMP3:
		return ".mp3"
	case tts.EncodingWAV:
		return ".wav"
	default:
		return ".pcm"
	}
}
