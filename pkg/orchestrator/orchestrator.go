// Package orchestrator runs one conversation turn end to end.
//
// A turn is an ordered list of stages over a shared State: transcribe and
// read the user's emotion (audio entry only), classify intent, recall
// session memory, compose the reply, synthesize speech, then record the
// turn for evaluation and memory. Every stage degrades instead of failing,
// so a turn only errors on a programming mistake such as a missing
// dependency.
//
//	o, err := orchestrator.New(orchestrator.Config{
//	    Composer:    composer,
//	    Synthesizer: synth,
//	    Memory:      memoryManager,
//	    Monitor:     monitor,
//	})
//	res, err := o.ProcessText(ctx, "", "What is yield farming?", orchestrator.TurnOptions{})
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/teslashibe/go-sophia/internal/log"
	"github.com/teslashibe/go-sophia/internal/telemetry"
	"github.com/teslashibe/go-sophia/pkg/compose"
	"github.com/teslashibe/go-sophia/pkg/emotion"
	"github.com/teslashibe/go-sophia/pkg/evaluation"
	"github.com/teslashibe/go-sophia/pkg/memory"
	"github.com/teslashibe/go-sophia/pkg/tts"
)

// Errors returned by the orchestrator.
var (
	ErrMissingDependency = errors.New("orchestrator: missing dependency")
	ErrEmptyAudio        = errors.New("orchestrator: empty audio")
	ErrNoTranscriber     = errors.New("orchestrator: no transcriber configured")
	ErrNoAudioDir        = errors.New("orchestrator: audio dir is empty")
)

// Transcriber turns speech into text. It returns "" on failure.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (text, provider string)
}

// EmotionClassifier labels text or speech. It never fails.
type EmotionClassifier interface {
	ClassifyText(ctx context.Context, text string) emotion.Score
	ClassifyAudio(ctx context.Context, audio []byte) emotion.Score
}

// Composer produces reply text. It never fails.
type Composer interface {
	Compose(ctx context.Context, in compose.Input) compose.Reply
	StreamTo(ctx context.Context, in compose.Input, yield func(delta string) error) (compose.Reply, error)
}

// Synthesizer produces reply speech. Synthesize never fails.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) tts.Audio
	Stream(ctx context.Context, text string, yield func(chunk []byte, format tts.AudioFormat) error) error
}

// Memory is the session memory the orchestrator reads and updates.
type Memory interface {
	ContextForLLM(ctx context.Context, id string) memory.Context
	Update(ctx context.Context, id string, turn memory.Turn) *memory.Session
}

// Monitor collects turns for evaluation.
type Monitor interface {
	Collect(id string, msg evaluation.Message)
	Messages(id string) []evaluation.Message
	CheckFinished(ctx context.Context) []*evaluation.Report
	Force(ctx context.Context, id string) (*evaluation.Report, bool)
	Evaluate(ctx context.Context, id string, msgs []evaluation.Message) *evaluation.Report
	Status() evaluation.Status
}

// Config holds the orchestrator's dependencies. Composer, Synthesizer,
// Memory and Monitor are required.
type Config struct {
	Transcriber Transcriber
	Emotion     EmotionClassifier
	Composer    Composer
	Synthesizer Synthesizer
	Memory      Memory
	Monitor     Monitor

	// Store receives emotion_scores rows. Optional.
	Store memory.DurableStore

	// AudioStore keeps reply audio. When nil the result carries a data URI.
	AudioStore AudioStore

	Tracer trace.Tracer
	Logger *slog.Logger
}

// Orchestrator runs turns. It is safe for concurrent use across sessions.
type Orchestrator struct {
	cfg     Config
	tracer  trace.Tracer
	log     *slog.Logger
	timings *TimingsCollector

	audioPipeline []step
	textPipeline  []step
}

// New validates cfg and builds the turn pipelines.
func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Composer == nil:
		return nil, fmt.Errorf("%w: composer", ErrMissingDependency)
	case cfg.Synthesizer == nil:
		return nil, fmt.Errorf("%w: synthesizer", ErrMissingDependency)
	case cfg.Memory == nil:
		return nil, fmt.Errorf("%w: memory", ErrMissingDependency)
	case cfg.Monitor == nil:
		return nil, fmt.Errorf("%w: monitor", ErrMissingDependency)
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(telemetry.TracerName)
	}

	o := &Orchestrator{
		cfg:     cfg,
		tracer:  tracer,
		log:     log.Component(cfg.Logger, "orchestrator"),
		timings: NewTimingsCollector(),
	}

	tail := []step{
		{"intent", o.classifyIntent},
		{"memory", o.recallMemory},
		{"compose", o.compose},
		{"synthesize", o.synthesize},
		{"assistant_emotion", o.classifyAssistantEmotion},
		{"store_audio", o.storeAudio},
		{"record", o.record},
		{"evaluate", o.evaluate},
	}
	o.audioPipeline = append([]step{
		{"transcribe", o.transcribe},
		{"user_emotion", o.classifyUserEmotion},
	}, tail...)
	o.textPipeline = tail
	return o, nil
}

// Timings returns the collector of recent turn timings.
func (o *Orchestrator) Timings() *TimingsCollector {
	return o.timings
}

// GetMemory returns the prompt projection of the session's memory.
func (o *Orchestrator) GetMemory(ctx context.Context, id string) memory.Context {
	return o.cfg.Memory.ContextForLLM(ctx, id)
}

// ForceEvaluate evaluates the session now. It reports false when the
// session has no active conversation.
func (o *Orchestrator) ForceEvaluate(ctx context.Context, id string) (*evaluation.Report, bool) {
	return o.cfg.Monitor.Force(ctx, id)
}

// EvaluationStatus returns the active conversations.
func (o *Orchestrator) EvaluationStatus() evaluation.Status {
	return o.cfg.Monitor.Status()
}

// CheckFinished evaluates every idle conversation.
func (o *Orchestrator) CheckFinished(ctx context.Context) []*evaluation.Report {
	return o.cfg.Monitor.CheckFinished(ctx)
}
