package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-sophia/internal/config"
	"github.com/teslashibe/go-sophia/internal/log"
	"github.com/teslashibe/go-sophia/internal/telemetry"
	"github.com/teslashibe/go-sophia/pkg/compose"
	"github.com/teslashibe/go-sophia/pkg/emotion"
	"github.com/teslashibe/go-sophia/pkg/evaluation"
	"github.com/teslashibe/go-sophia/pkg/inference"
	"github.com/teslashibe/go-sophia/pkg/knowledge"
	"github.com/teslashibe/go-sophia/pkg/memory"
	"github.com/teslashibe/go-sophia/pkg/orchestrator"
	"github.com/teslashibe/go-sophia/pkg/stt"
	"github.com/teslashibe/go-sophia/pkg/tts"
	"github.com/teslashibe/go-sophia/pkg/web"
)

const geminiModel = "gemini-2.0-flash"

// app is the wired runtime shared by every command.
type app struct {
	cfg *config.Config
	log *slog.Logger

	orch     *orchestrator.Orchestrator
	monitor  *evaluation.Monitor
	composer *compose.Composer
	health   map[string]web.HealthChecker

	closers []func() error
}

// loadConfig reads and validates configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// providers are the optional external clients; a nil field means the key
// is not configured.
type providers struct {
	openai    *inference.Client
	anthropic *inference.Anthropic
	mistral   *inference.Client
	gemini    *inference.Gemini
}

func newProviders(cfg *config.Config, logger *slog.Logger) providers {
	pc := cfg.Providers
	var p providers
	var err error

	if pc.OpenAIKey != "" {
		p.openai, err = inference.NewClient(append(
			inference.OpenAI(pc.OpenAIKey, pc.GenerationURL, pc.GenerationModel, pc.EmbedModel),
			inference.WithTimeout(pc.Timeout),
			inference.WithLogger(logger),
		)...)
		warnIf(logger, "openai", err)
	}
	if pc.AnthropicKey != "" {
		p.anthropic, err = inference.NewAnthropic(
			inference.WithAPIKey(pc.AnthropicKey),
			inference.WithModel(pc.AnthropicModel),
			inference.WithMaxTokens(150),
			inference.WithTimeout(pc.Timeout),
			inference.WithLogger(logger),
		)
		warnIf(logger, "anthropic", err)
	}
	if pc.MistralKey != "" {
		p.mistral, err = inference.NewClient(append(inference.Mistral(pc.MistralKey, pc.EmotionModel),
			inference.WithTimeout(pc.Timeout),
			inference.WithLogger(logger),
		)...)
		warnIf(logger, "mistral", err)
	}
	if pc.GoogleKey != "" {
		p.gemini, err = inference.NewGemini(
			inference.WithAPIKey(pc.GoogleKey),
			inference.WithTimeout(pc.Timeout),
			inference.WithLogger(logger),
		)
		warnIf(logger, "gemini", err)
	}
	return p
}

func warnIf(logger *slog.Logger, provider string, err error) {
	if err != nil {
		logger.Warn("provider disabled", "provider", provider, "error", err)
	}
}

// primary and secondary return untyped nils so the composer sees a missing
// tier rather than a nil pointer.
func (p providers) primary() inference.Provider {
	if p.openai == nil {
		return nil
	}
	return p.openai
}

func (p providers) secondary() inference.Provider {
	if p.anthropic == nil {
		return nil
	}
	return p.anthropic
}

func (p providers) generation() []inference.Provider {
	var out []inference.Provider
	for _, gp := range []inference.Provider{p.primary(), p.secondary()} {
		if gp != nil {
			out = append(out, gp)
		}
	}
	return out
}

func newTranscriber(cfg *config.Config, p providers, logger *slog.Logger) orchestrator.Transcriber {
	var tiers []stt.Provider
	opts := []stt.Option{stt.WithTimeout(cfg.Providers.Timeout), stt.WithLogger(logger)}

	if cfg.Providers.MistralKey != "" {
		m, err := stt.NewMistral(append(opts, stt.WithAPIKey(cfg.Providers.MistralKey))...)
		warnIf(logger, "stt.mistral", err)
		if err == nil {
			tiers = append(tiers, m)
		}
	}
	if p.gemini != nil {
		tiers = append(tiers, stt.NewGemini(p.gemini, geminiModel))
	}
	if cfg.Providers.OpenAIKey != "" {
		w, err := stt.NewWhisper(append(opts, stt.WithAPIKey(cfg.Providers.OpenAIKey))...)
		warnIf(logger, "stt.whisper", err)
		if err == nil {
			tiers = append(tiers, w)
		}
	}
	if len(tiers) == 0 {
		logger.Warn("no transcription provider configured, audio turns disabled")
		return nil
	}

	chain, err := stt.NewChain(logger, tiers...)
	if err != nil {
		return nil
	}
	return stt.NewTranscriber(chain, logger)
}

func newEmotionClassifier(p providers, logger *slog.Logger) *emotion.Classifier {
	var models []emotion.Model
	if p.mistral != nil {
		models = append(models, emotion.NewTextModel(p.mistral, ""))
	}
	if p.gemini != nil {
		models = append(models, emotion.NewAudioModel(p.gemini, geminiModel))
	}
	models = append(models, emotion.Lexicon{})
	return emotion.NewClassifier(logger, models...)
}

func newSynthesizer(cfg *config.Config, logger *slog.Logger) *tts.Synthesizer {
	pc := cfg.Providers
	var tiers []tts.Provider

	if pc.InworldKey != "" {
		opts := []tts.Option{
			tts.WithAPIKey(pc.InworldKey),
			tts.WithVoice(pc.InworldVoice),
			tts.WithModel(pc.InworldModel),
			tts.WithTimeout(pc.Timeout),
			tts.WithLogger(logger),
		}
		if pc.TTSStreaming {
			ws, err := tts.NewInworldWS(opts...)
			warnIf(logger, "tts.inworld_ws", err)
			if err == nil {
				tiers = append(tiers, ws)
			}
		}
		iw, err := tts.NewInworld(opts...)
		warnIf(logger, "tts.inworld", err)
		if err == nil {
			tiers = append(tiers, iw)
		}
	}
	if pc.OpenAIKey != "" {
		oa, err := tts.NewOpenAI(
			tts.WithAPIKey(pc.OpenAIKey),
			tts.WithVoice(pc.OpenAIVoice),
			tts.WithTimeout(pc.Timeout),
			tts.WithLogger(logger),
		)
		warnIf(logger, "tts.openai", err)
		if err == nil {
			tiers = append(tiers, oa)
		}
	}
	if len(tiers) == 0 {
		logger.Warn("no speech provider configured, replies use placeholder audio")
		return tts.NewSynthesizer(nil, logger)
	}

	chain, err := tts.NewChain(logger, tiers...)
	if err != nil {
		return tts.NewSynthesizer(nil, logger)
	}
	return tts.NewSynthesizer(chain, logger)
}

func newCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) memory.FastCache {
	if addr := cfg.RedisAddr(); addr != "" {
		rc, err := memory.NewRedisCache(ctx, memory.RedisOptions{
			Addr:     addr,
			Password: cfg.Memory.RedisPassword,
			DB:       cfg.Memory.RedisDB,
		})
		if err == nil {
			logger.Info("session cache", "backend", "redis", "addr", addr)
			return rc
		}
		logger.Warn("redis unavailable, using in-process cache", "addr", addr, "error", err)
	}
	return memory.NewLRUCache(cfg.Memory.CacheSize, cfg.Memory.TTL)
}

// newApp wires every component from cfg. Missing provider keys shorten the
// fallback chains; only local resources (the database, the audio
// directory, the exporter) are fatal.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		Headers:     cfg.Telemetry.Headers,
		ServiceName: cfg.Telemetry.ServiceName,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, err
	}
	a.onClose(func() error { return tel.Shutdown(context.Background()) })

	p := newProviders(cfg, logger)

	var embedder knowledge.Embedder = knowledge.HashEmbedder{}
	if p.openai != nil {
		embedder = knowledge.NewProviderEmbedder(p.openai, cfg.Providers.EmbedModel)
	}
	retriever, err := knowledge.NewRetriever(ctx, embedder, knowledge.DefaultFAQs(), knowledge.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	a.composer = compose.NewComposer(p.primary(), p.secondary(), retriever, compose.WithLogger(logger))

	store, err := memory.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	a.onClose(store.Close)

	cache := newCache(ctx, cfg, logger)
	a.onClose(cache.Close)

	mem := memory.NewManager(cache, store, memory.WithTTL(cfg.Memory.TTL), memory.WithLogger(logger))

	a.monitor = evaluation.NewMonitor(
		evaluation.WithIdleTimeout(cfg.Eval.IdleTimeout),
		evaluation.WithSchedule(cfg.Eval.SweepSchedule),
		evaluation.WithDrift(cfg.Eval.Baseline, cfg.Eval.Threshold),
		evaluation.WithStore(store),
		evaluation.WithLogger(logger),
	)

	var audio orchestrator.AudioStore
	if cfg.Storage.AudioDir != "" {
		fs, err := orchestrator.NewFileStore(cfg.Storage.AudioDir, cfg.Storage.AudioPrefix)
		if err != nil {
			return nil, err
		}
		audio = fs
	}

	synth := newSynthesizer(cfg, logger)
	a.orch, err = orchestrator.New(orchestrator.Config{
		Transcriber: newTranscriber(cfg, p, logger),
		Emotion:     newEmotionClassifier(p, logger),
		Composer:    a.composer,
		Synthesizer: synth,
		Memory:      mem,
		Monitor:     a.monitor,
		Store:       store,
		AudioStore:  audio,
		Tracer:      tel.Tracer(),
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	a.health = map[string]web.HealthChecker{"speech": synth}
	if gen := p.generation(); len(gen) > 0 {
		if chain, err := inference.NewChain(logger, gen...); err == nil {
			a.health["generation"] = chain
		}
	}
	return a, nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// setup loads configuration, initializes logging and wires the app.
func setup(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, log.Setup(cfg.LogLevel, cfg.Production()))
}
