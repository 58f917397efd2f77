package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teslashibe/go-sophia/pkg/compose"
	"github.com/teslashibe/go-sophia/pkg/emotion"
	"github.com/teslashibe/go-sophia/pkg/evaluation"
	"github.com/teslashibe/go-sophia/pkg/intent"
	"github.com/teslashibe/go-sophia/pkg/knowledge"
	"github.com/teslashibe/go-sophia/pkg/memory"
	"github.com/teslashibe/go-sophia/pkg/tts"
)

// Fallback markers reported in Result.Fallbacks.
const (
	FallbackTranscript    = "stt:empty_transcript"
	FallbackUserEmotion   = "emotion:user_default"
	FallbackAssistantTone = "emotion:assistant_default"
	FallbackPlaceholder   = "tts:placeholder"
	FallbackTTSStream     = "tts:stream"
	FallbackTTSBroken     = "tts:stream_broken"
	FallbackAudioStore    = "audio:data_uri"
)

// TurnOptions tune a single turn.
type TurnOptions struct {
	// Evaluate attaches an evaluation of the conversation so far.
	Evaluate bool
}

// Stage reads its inputs from s and writes its outputs back to it.
// A returned error aborts the turn.
type Stage func(ctx context.Context, s *State) error

type step struct {
	name string
	run  Stage
}

// State is the working record of one turn.
type State struct {
	SessionID string
	Options   TurnOptions
	Timestamp time.Time

	Audio              []byte
	Transcript         string
	TranscriptProvider string
	UserEmotion        emotion.Score
	Intent             intent.Intent
	Memory             memory.Context
	Reply              compose.Reply
	Speech             tts.Audio
	AssistantEmotion   emotion.Score
	AudioRef           string
	Evaluation         *evaluation.Report
	Fallbacks          []string

	watch *stopwatch
}

func newState(sessionID string, opts TurnOptions) *State {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &State{
		SessionID: sessionID,
		Options:   opts,
		Timestamp: time.Now(),
		watch:     newStopwatch(),
	}
}

func (s *State) fallback(name string) {
	s.Fallbacks = append(s.Fallbacks, name)
}

// Result is the outcome of a turn.
type Result struct {
	SessionID        string             `json:"session_id"`
	Transcript       string             `json:"transcript"`
	Reply            string             `json:"reply"`
	ReplyTier        compose.Tier       `json:"reply_tier"`
	UserEmotion      emotion.Score      `json:"user_emotion"`
	AssistantEmotion emotion.Score      `json:"assistant_emotion"`
	Intent           intent.Intent      `json:"intent"`
	Audio            []byte             `json:"-"`
	AudioFormat      tts.AudioFormat    `json:"audio_format"`
	AudioRef         string             `json:"audio_url"`
	MemoryContext    memory.Context     `json:"context_memory"`
	KnowledgeHits    []knowledge.Match  `json:"knowledge_hits,omitempty"`
	Fallbacks        []string           `json:"fallbacks"`
	Evaluation       *evaluation.Report `json:"evaluation,omitempty"`
	Timings          Timings            `json:"timings"`
}

func (s *State) result(t Timings) *Result {
	fallbacks := s.Fallbacks
	if fallbacks == nil {
		fallbacks = []string{}
	}
	return &Result{
		SessionID:        s.SessionID,
		Transcript:       s.Transcript,
		Reply:            s.Reply.Text,
		ReplyTier:        s.Reply.Tier,
		UserEmotion:      s.UserEmotion,
		AssistantEmotion: s.AssistantEmotion,
		Intent:           s.Intent,
		Audio:            s.Speech.Data,
		AudioFormat:      s.Speech.Format,
		AudioRef:         s.AudioRef,
		MemoryContext:    s.Memory,
		KnowledgeHits:    s.Reply.KnowledgeHits,
		Fallbacks:        fallbacks,
		Evaluation:       s.Evaluation,
		Timings:          t,
	}
}

// ProcessText runs a typed turn. Text entry skips transcription and seeds
// a neutral user emotion. An empty sessionID starts a new session.
func (o *Orchestrator) ProcessText(ctx context.Context, sessionID, text string, opts TurnOptions) (*Result, error) {
	s := newState(sessionID, opts)
	s.Transcript = text
	s.UserEmotion = emotion.TextEntry()
	return o.run(ctx, "text", o.textPipeline, s)
}

// ProcessAudio runs a spoken turn.
func (o *Orchestrator) ProcessAudio(ctx context.Context, sessionID string, audio []byte, opts TurnOptions) (*Result, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if o.cfg.Transcriber == nil {
		return nil, ErrNoTranscriber
	}
	s := newState(sessionID, opts)
	s.Audio = audio
	return o.run(ctx, "audio", o.audioPipeline, s)
}

func (o *Orchestrator) run(ctx context.Context, entry string, steps []step, s *State) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "sophia.turn", trace.WithAttributes(
		attribute.String("session.id", s.SessionID),
		attribute.String("turn.entry", entry),
	))
	defer span.End()

	o.sweep(ctx)

	for _, st := range steps {
		if err := o.runStage(ctx, st, s); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.log.Warn("turn aborted",
				"session_id", s.SessionID,
				"stage", st.name,
				"error", err)
			return nil, fmt.Errorf("orchestrator: %s: %w", st.name, err)
		}
	}

	t := s.watch.done()
	o.timings.Record(t)

	span.SetAttributes(
		attribute.String("turn.intent", string(s.Intent)),
		attribute.String("turn.reply_tier", string(s.Reply.Tier)),
		attribute.StringSlice("turn.fallbacks", s.Fallbacks),
		attribute.Int64("turn.total_ms", t.Total.Milliseconds()),
	)
	o.log.Info("turn complete",
		"session_id", s.SessionID,
		"entry", entry,
		"intent", s.Intent,
		"reply_tier", s.Reply.Tier,
		"fallbacks", s.Fallbacks,
		"latency", t.FormatLatency())
	return s.result(t), nil
}

func (o *Orchestrator) runStage(ctx context.Context, st step, s *State) error {
	ctx, span := o.tracer.Start(ctx, "sophia."+st.name)
	defer span.End()

	start := time.Now()
	err := st.run(ctx, s)
	s.watch.stage(st.name, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// sweep evaluates idle conversations before each turn.
func (o *Orchestrator) sweep(ctx context.Context) {
	if reports := o.cfg.Monitor.CheckFinished(ctx); len(reports) > 0 {
		o.log.Info("evaluated finished conversations", "count", len(reports))
	}
}

func (o *Orchestrator) transcribe(ctx context.Context, s *State) error {
	text, provider := o.cfg.Transcriber.Transcribe(ctx, s.Audio)
	s.Transcript = text
	s.TranscriptProvider = provider
	if text == "" {
		s.fallback(FallbackTranscript)
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("transcript.length", len(text)),
		attribute.String("transcript.provider", provider),
	)
	return nil
}

func (o *Orchestrator) classifyUserEmotion(ctx context.Context, s *State) error {
	if o.cfg.Emotion == nil {
		s.UserEmotion = emotion.Fallback()
		s.fallback(FallbackUserEmotion)
		return nil
	}
	s.UserEmotion = o.cfg.Emotion.ClassifyAudio(ctx, s.Audio)
	if s.UserEmotion == emotion.Fallback() {
		s.fallback(FallbackUserEmotion)
	}
	setEmotionAttrs(ctx, "user", s.UserEmotion)
	return nil
}

func (o *Orchestrator) classifyIntent(ctx context.Context, s *State) error {
	s.Intent = intent.Classify(s.Transcript)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("intent", string(s.Intent)))
	return nil
}

func (o *Orchestrator) recallMemory(ctx context.Context, s *State) error {
	s.Memory = o.cfg.Memory.ContextForLLM(ctx, s.SessionID)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("memory.turns", s.Memory.ConversationTurns))
	return nil
}

func (s *State) composeInput() compose.Input {
	return compose.Input{
		Transcript: s.Transcript,
		Intent:     s.Intent,
		Emotion:    s.UserEmotion,
		Memory:     s.Memory,
	}
}

func (s *State) noteReply(ctx context.Context) {
	if s.Reply.Tier.Fallback() {
		s.fallback("compose:" + string(s.Reply.Tier))
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("reply.tier", string(s.Reply.Tier)),
		attribute.Int("reply.length", len(s.Reply.Text)),
		attribute.Int("knowledge.hits", len(s.Reply.KnowledgeHits)),
	)
}

func (o *Orchestrator) compose(ctx context.Context, s *State) error {
	s.Reply = o.cfg.Composer.Compose(ctx, s.composeInput())
	s.noteReply(ctx)
	return nil
}

func (o *Orchestrator) synthesize(ctx context.Context, s *State) error {
	s.Speech = o.cfg.Synthesizer.Synthesize(ctx, s.Reply.Text)
	if s.Speech.Placeholder {
		s.fallback(FallbackPlaceholder)
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("audio.bytes", len(s.Speech.Data)),
		attribute.String("audio.provider", s.Speech.Provider),
	)
	return nil
}

// classifyAssistantEmotion reads Sophia's tone from the reply text.
func (o *Orchestrator) classifyAssistantEmotion(ctx context.Context, s *State) error {
	if o.cfg.Emotion == nil {
		s.AssistantEmotion = emotion.Fallback()
		s.fallback(FallbackAssistantTone)
		return nil
	}
	s.AssistantEmotion = o.cfg.Emotion.ClassifyText(ctx, s.Reply.Text)
	if s.AssistantEmotion == emotion.Fallback() {
		s.fallback(FallbackAssistantTone)
	}
	setEmotionAttrs(ctx, "assistant", s.AssistantEmotion)
	return nil
}

func setEmotionAttrs(ctx context.Context, role string, sc emotion.Score) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("emotion.role", role),
		attribute.String("emotion.label", string(sc.Label)),
		attribute.Float64("emotion.confidence", sc.Confidence),
	)
}

func (o *Orchestrator) storeAudio(ctx context.Context, s *State) error {
	if len(s.Speech.Data) == 0 {
		return nil
	}
	if o.cfg.AudioStore != nil {
		ref, err := o.cfg.AudioStore.Put(ctx, s.Speech.Data, s.Speech.Format)
		if err == nil {
			s.AudioRef = ref
			return nil
		}
		o.log.Warn("audio store failed, embedding audio", "session_id", s.SessionID, "error", err)
		s.fallback(FallbackAudioStore)
	}
	s.AudioRef = DataURI(s.Speech.Data, s.Speech.Format)
	return nil
}

// record hands the finished turn to the monitor, the emotion log and
// session memory. Persistence failures are logged by each component.
func (o *Orchestrator) record(ctx context.Context, s *State) error {
	o.cfg.Monitor.Collect(s.SessionID, evaluation.Message{
		Query:            s.Transcript,
		Reply:            s.Reply.Text,
		Context:          knowledge.FormatContext(s.Reply.KnowledgeHits),
		UserEmotion:      s.UserEmotion,
		AssistantEmotion: s.AssistantEmotion,
		Intent:           s.Intent,
		Timestamp:        s.Timestamp,
	})

	if o.cfg.Store != nil {
		samples := evaluation.Message{
			UserEmotion:      s.UserEmotion,
			AssistantEmotion: s.AssistantEmotion,
			Timestamp:        s.Timestamp,
		}.Samples(s.SessionID)
		for _, sample := range samples {
			if err := o.cfg.Store.Upsert(ctx, memory.TableEmotionScores, sample.Record()); err != nil {
				o.log.Warn("emotion score write failed",
					"session_id", s.SessionID,
					"role", sample.Role,
					"error", err)
			}
		}
	}

	o.cfg.Memory.Update(ctx, s.SessionID, memory.Turn{
		Query:            s.Transcript,
		Reply:            s.Reply.Text,
		UserEmotion:      s.UserEmotion,
		AssistantEmotion: s.AssistantEmotion,
		Intent:           s.Intent,
		Timestamp:        s.Timestamp,
	})
	return nil
}

func (o *Orchestrator) evaluate(ctx context.Context, s *State) error {
	if !s.Options.Evaluate {
		return nil
	}
	s.Evaluation = o.cfg.Monitor.Evaluate(ctx, s.SessionID, o.cfg.Monitor.Messages(s.SessionID))
	return nil
}
