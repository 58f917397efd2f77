package orchestrator

import (
	"bytes"
	"context"

	"github.com/teslashibe/go-sophia/pkg/emotion"
	"github.com/teslashibe/go-sophia/pkg/tts"
)

// Sink receives a streamed turn. An error from either method cancels the
// rest of the turn.
type Sink interface {
	Text(delta string) error
	Audio(chunk []byte, format tts.AudioFormat) error
}

// StreamText runs a typed turn, sending reply text to sink as it is
// generated and then reply audio in buffered chunks. Memory and evaluation
// are updated only after the full reply and audio are known; a cancelled
// context or failing sink skips them and returns the error.
func (o *Orchestrator) StreamText(ctx context.Context, sessionID, text string, sink Sink) (*Result, error) {
	s := newState(sessionID, TurnOptions{})
	s.Transcript = text
	s.UserEmotion = emotion.TextEntry()

	steps := []step{
		{"intent", o.classifyIntent},
		{"memory", o.recallMemory},
		{"compose", func(ctx context.Context, s *State) error { return o.streamCompose(ctx, s, sink) }},
		{"synthesize", func(ctx context.Context, s *State) error { return o.streamSynthesize(ctx, s, sink) }},
		{"assistant_emotion", o.classifyAssistantEmotion},
		{"store_audio", o.storeAudio},
		{"record", o.record},
	}
	return o.run(ctx, "stream", steps, s)
}

func (o *Orchestrator) streamCompose(ctx context.Context, s *State, sink Sink) error {
	reply, err := o.cfg.Composer.StreamTo(ctx, s.composeInput(), func(delta string) error {
		s.watch.markFirstText()
		return sink.Text(delta)
	})
	s.Reply = reply
	if err != nil {
		return err
	}
	s.noteReply(ctx)
	return nil
}

// streamSynthesize streams speech to sink. When the provider stream fails
// before any audio was sent, the whole reply is synthesized and sent as
// one chunk. When it fails after, the audio already sent is kept.
func (o *Orchestrator) streamSynthesize(ctx context.Context, s *State, sink Sink) error {
	var (
		buf     bytes.Buffer
		format  tts.AudioFormat
		sinkErr error
	)
	err := o.cfg.Synthesizer.Stream(ctx, s.Reply.Text, func(chunk []byte, f tts.AudioFormat) error {
		s.watch.markFirstAudio()
		if err := sink.Audio(chunk, f); err != nil {
			sinkErr = err
			return err
		}
		buf.Write(chunk)
		format = f
		return nil
	})

	switch {
	case sinkErr != nil:
		return sinkErr
	case ctx.Err() != nil:
		return ctx.Err()
	case err == nil:
		s.Speech = tts.Audio{Data: buf.Bytes(), Format: format}
		return nil
	case buf.Len() > 0:
		o.log.Warn("speech stream broke, keeping partial audio",
			"session_id", s.SessionID,
			"bytes", buf.Len(),
			"error", err)
		s.Speech = tts.Audio{Data: buf.Bytes(), Format: format}
		s.fallback(FallbackTTSBroken)
		return nil
	}

	o.log.Warn("speech stream failed, synthesizing whole reply", "session_id", s.SessionID, "error", err)
	s.fallback(FallbackTTSStream)
	s.Speech = o.cfg.Synthesizer.Synthesize(ctx, s.Reply.Text)
	if s.Speech.Placeholder {
		s.fallback(FallbackPlaceholder)
	}
	s.watch.markFirstAudio()
	return sink.Audio(s.Speech.Data, s.Speech.Format)
}
