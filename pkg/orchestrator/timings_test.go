package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-sophia/pkg/tts"
)

func TestTimingsCollectorAverage(t *testing.T) {
	c := NewTimingsCollector()
	assert.Equal(t, Timings{}, c.Average())

	c.Record(Timings{
		Stages: []StageTiming{{"intent", 2 * time.Millisecond}, {"compose", 100 * time.Millisecond}},
		Total:  200 * time.Millisecond,
	})
	c.Record(Timings{
		Stages:    []StageTiming{{"intent", 4 * time.Millisecond}, {"compose", 300 * time.Millisecond}},
		FirstText: 50 * time.Millisecond,
		Total:     400 * time.Millisecond,
	})

	avg := c.Average()
	assert.Equal(t, 3*time.Millisecond, avg.Stage("intent"))
	assert.Equal(t, 200*time.Millisecond, avg.Stage("compose"))
	assert.Equal(t, 50*time.Millisecond, avg.FirstText, "streaming marks average over turns that set them")
	assert.Zero(t, avg.FirstAudio)
	assert.Equal(t, 300*time.Millisecond, avg.Total)
	assert.Equal(t, "intent", avg.Stages[0].Name)
}

func TestTimingsCollectorHistoryBound(t *testing.T) {
	c := NewTimingsCollector()
	for i := 0; i < historySize+10; i++ {
		c.Record(Timings{Total: time.Millisecond})
	}
	assert.Equal(t, historySize, c.Len())
}

func TestTimingsCollectorOnUpdate(t *testing.T) {
	c := NewTimingsCollector()
	got := make(chan Timings, 1)
	c.OnUpdate(func(t Timings) { got <- t })

	c.Record(Timings{Total: time.Second})

	select {
	case tm := <-got:
		assert.Equal(t, time.Second, tm.Total)
	case <-time.After(time.Second):
		t.Fatal("OnUpdate not called")
	}
}

func TestFormatLatency(t *testing.T) {
	tm := Timings{
		Stages: []StageTiming{{"intent", 1500 * time.Microsecond}, {"compose", 0}},
		Total:  time.Second,
	}
	assert.Equal(t, "2ms intent | ---ms compose | 1s TOTAL", tm.FormatLatency())
}

func TestDataURI(t *testing.T) {
	uri := DataURI([]byte("abc"), tts.AudioFormat{Encoding: tts.EncodingMP3})
	assert.Equal(t, "data:audio/mpeg;base64,YWJj", uri)
}

func TestFileStorePut(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	fs, err := NewFileStore(dir, "responses")
	require.NoError(t, err)

	ref, err := fs.Put(context.Background(), []byte("mp3"), tts.AudioFormat{Encoding: tts.EncodingMP3})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/audio/responses/sophia_"))
	assert.True(t, strings.HasSuffix(ref, ".mp3"))

	data, err := os.ReadFile(filepath.Join(fs.Dir(), "responses", filepath.Base(ref)))
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), data)

	_, err = NewFileStore("", "responses")
	assert.ErrorIs(t, err, ErrNoAudioDir)
}
