// Package web serves Sophia over HTTP and websockets.
//
// Routes:
//
//	POST /api/turn                  text or base64 audio turn
//	POST /api/turn/audio            multipart audio turn
//	GET  /api/memory/:id            prompt memory for a session
//	POST /api/evaluation/:id/force  evaluate one conversation now
//	POST /api/evaluation/check      evaluate every idle conversation
//	GET  /api/evaluation/status     active conversations
//	GET  /api/health                provider health and latency
//	GET  /ws/turn                   streamed text turn
//	GET  /ws/evaluations            evaluation report feed
//	GET  /audio/*                   stored reply audio
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-sophia/internal/log"
	"github.com/teslashibe/go-sophia/pkg/evaluation"
	"github.com/teslashibe/go-sophia/pkg/hub"
	"github.com/teslashibe/go-sophia/pkg/memory"
	"github.com/teslashibe/go-sophia/pkg/orchestrator"
)

// DefaultBodyLimit bounds request bodies, including uploaded audio.
const DefaultBodyLimit = 25 * 1024 * 1024

// Orchestrator is the conversation engine the server exposes.
type Orchestrator interface {
	ProcessText(ctx context.Context, sessionID, text string, opts orchestrator.TurnOptions) (*orchestrator.Result, error)
	ProcessAudio(ctx context.Context, sessionID string, audio []byte, opts orchestrator.TurnOptions) (*orchestrator.Result, error)
	StreamText(ctx context.Context, sessionID, text string, sink orchestrator.Sink) (*orchestrator.Result, error)
	GetMemory(ctx context.Context, id string) memory.Context
	ForceEvaluate(ctx context.Context, id string) (*evaluation.Report, bool)
	EvaluationStatus() evaluation.Status
	CheckFinished(ctx context.Context) []*evaluation.Report
	Timings() *orchestrator.TimingsCollector
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address, e.g. ":8000".
	Addr string

	// AudioDir, when set, is served under orchestrator.AudioURLPrefix.
	AudioDir string

	// Health maps a provider name to its checker for GET /api/health.
	Health map[string]HealthChecker

	HealthTimeout time.Duration
	BodyLimit     int
	Logger        *slog.Logger
	Now           func() time.Time
}

// Server is the HTTP boundary around an Orchestrator.
type Server struct {
	app     *fiber.App
	orch    Orchestrator
	cfg     Config
	log     *slog.Logger
	evalHub *hub.Hub

	// base is the parent context of every request; Shutdown cancels it.
	base   context.Context
	cancel context.CancelFunc
}

// NewServer builds the routes over orch.
func NewServer(orch Orchestrator, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 5 * time.Second
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := log.Component(cfg.Logger, "web.server")

	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		orch:    orch,
		cfg:     cfg,
		log:     logger,
		evalHub: hub.New("evaluations", cfg.Logger),
		base:    base,
		cancel:  cancel,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Sophia",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	if cfg.AudioDir != "" {
		app.Static(orchestrator.AudioURLPrefix, cfg.AudioDir)
	}

	api := app.Group("/api")
	api.Get("/", s.handleRoot)
	api.Get("/health", s.handleHealth)
	api.Post("/turn", s.handleTurn)
	api.Post("/turn/audio", s.handleAudioTurn)
	api.Get("/memory/:id", s.handleMemory)
	api.Post("/evaluation/check", s.handleCheckFinished)
	api.Post("/evaluation/:id/force", s.handleForceEvaluate)
	api.Get("/evaluation/status", s.handleEvaluationStatus)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/turn", websocket.New(s.handleTurnWS))
	app.Get("/ws/evaluations", websocket.New(s.handleEvaluationsWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listener returns an evaluation listener that broadcasts reports to
// /ws/evaluations subscribers.
func (s *Server) Listener() evaluation.Listener {
	return evaluation.ListenerFunc(func(r *evaluation.Report) {
		if err := s.evalHub.BroadcastJSON(newReportEvent(r)); err != nil {
			s.log.Warn("encode evaluation event", "session_id", r.SessionID, "error", err)
		}
	})
}

// Start runs the evaluation hub and listens on cfg.Addr until ctx is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start over an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.evalHub.Run(s.base)

	errc := make(chan error, 1)
	go func() { errc <- s.app.Listener(ln) }()
	s.log.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		s.cancel()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes websocket subscribers and
// waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.app.ShutdownWithContext(ctx)
}
