package web

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-sophia/pkg/evaluation"
	"github.com/teslashibe/go-sophia/pkg/orchestrator"
)

// TurnRequest is the body of POST /api/turn. Exactly one of Text and
// AudioBase64 should be set; audio wins when both are.
type TurnRequest struct {
	SessionID   string `json:"session_id"`
	Text        string `json:"text"`
	AudioBase64 string `json:"audio_base64"`
	Evaluate    bool   `json:"evaluate"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string               `json:"status"`
	Timestamp int64                `json:"timestamp"`
	Providers map[string]string    `json:"providers,omitempty"`
	Latency   orchestrator.Timings `json:"latency"`
}

// ReportEvent is what /ws/evaluations subscribers receive.
type ReportEvent struct {
	Type    string              `json:"type"`
	Summary evaluation.Summary  `json:"summary"`
	Quality *evaluation.Metrics `json:"quality,omitempty"`
}

func newReportEvent(r *evaluation.Report) ReportEvent {
	return ReportEvent{Type: "evaluation", Summary: r.Summary(), Quality: r.Quality}
}

func (s *Server) timestamp() float64 {
	return float64(s.cfg.Now().UnixMilli()) / 1000
}

// handleError renders errors as ErrorResponse.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	msg := err.Error()
	if fe == nil {
		msg = "internal error"
	}
	return c.Status(code).JSON(ErrorResponse{Error: msg})
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Sophia backend is running."})
}

// handleHealth checks every provider concurrently within the health timeout.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.HealthTimeout)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(s.cfg.Health))
	for name, hc := range s.cfg.Health {
		go func() { results <- result{name, hc.Health(ctx)} }()
	}

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: s.cfg.Now().Unix(),
		Latency:   s.orch.Timings().Average(),
	}
	if len(s.cfg.Health) > 0 {
		resp.Providers = make(map[string]string, len(s.cfg.Health))
	}
	for range s.cfg.Health {
		r := <-results
		if r.err != nil {
			resp.Providers[r.name] = r.err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Providers[r.name] = "ok"
	}
	return c.JSON(resp)
}

func (s *Server) handleTurn(c *fiber.Ctx) error {
	var req TurnRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	opts := orchestrator.TurnOptions{Evaluate: req.Evaluate}

	if req.AudioBase64 != "" {
		audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "audio_base64 is not valid base64")
		}
		return s.respondTurn(c, func(ctx context.Context) (*orchestrator.Result, error) {
			return s.orch.ProcessAudio(ctx, req.SessionID, audio, opts)
		})
	}
	if req.Text == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text or audio_base64 is required")
	}
	return s.respondTurn(c, func(ctx context.Context) (*orchestrator.Result, error) {
		return s.orch.ProcessText(ctx, req.SessionID, req.Text, opts)
	})
}

func (s *Server) handleAudioTurn(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	evaluate, _ := strconv.ParseBool(c.FormValue("evaluate"))
	sessionID := c.FormValue("session_id")
	return s.respondTurn(c, func(ctx context.Context) (*orchestrator.Result, error) {
		return s.orch.ProcessAudio(ctx, sessionID, audio, orchestrator.TurnOptions{Evaluate: evaluate})
	})
}

func (s *Server) respondTurn(c *fiber.Ctx, turn func(context.Context) (*orchestrator.Result, error)) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	res, err := turn(ctx)
	switch {
	case errors.Is(err, orchestrator.ErrEmptyAudio):
		return fiber.NewError(fiber.StatusBadRequest, "audio is empty")
	case errors.Is(err, orchestrator.ErrNoTranscriber):
		return fiber.NewError(fiber.StatusServiceUnavailable, "speech input is not configured")
	case err != nil:
		return err
	}
	return c.JSON(res)
}

// requestContext derives a turn context that ends with the request or
// with server shutdown.
func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(c.UserContext())
	stop := context.AfterFunc(s.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Server) handleMemory(c *fiber.Ctx) error {
	id := c.Params("id")
	return c.JSON(fiber.Map{
		"session_id": id,
		"context":    s.orch.GetMemory(c.UserContext(), id),
		"timestamp":  s.timestamp(),
	})
}

func (s *Server) handleForceEvaluate(c *fiber.Ctx) error {
	id := c.Params("id")
	ctx, cancel := s.requestContext(c)
	defer cancel()

	report, ok := s.orch.ForceEvaluate(ctx, id)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound,
			fmt.Sprintf("No active conversation found for session %s", id))
	}
	return c.JSON(fiber.Map{
		"message":           "Conversation evaluation completed",
		"session_id":        id,
		"evaluation_report": report.Summary(),
		"report":            report,
		"timestamp":         s.timestamp(),
	})
}

func (s *Server) handleCheckFinished(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	reports := s.orch.CheckFinished(ctx)
	summaries := make([]evaluation.Summary, len(reports))
	for i, r := range reports {
		summaries[i] = r.Summary()
	}
	return c.JSON(fiber.Map{
		"message":               fmt.Sprintf("Evaluated %d finished conversations", len(reports)),
		"evaluations_completed": len(reports),
		"evaluation_summaries":  summaries,
		"timestamp":             s.timestamp(),
	})
}

// statusEntry is evaluation.SessionStatus in minutes and seconds.
type statusEntry struct {
	SessionID       string  `json:"session_id"`
	TotalMessages   int     `json:"total_messages"`
	DurationMinutes float64 `json:"conversation_duration_minutes"`
	IdleSeconds     float64 `json:"idle_seconds"`
}

func (s *Server) handleEvaluationStatus(c *fiber.Ctx) error {
	st := s.orch.EvaluationStatus()
	active := make([]statusEntry, len(st.Sessions))
	for i, ss := range st.Sessions {
		active[i] = statusEntry{
			SessionID:       ss.SessionID,
			TotalMessages:   ss.TotalMessages,
			DurationMinutes: ss.ConversationDuration.Minutes(),
			IdleSeconds:     ss.IdleFor.Seconds(),
		}
	}
	return c.JSON(fiber.Map{
		"active_conversations_count":   st.ActiveCount,
		"active_conversations":         active,
		"conversation_timeout_minutes": st.IdleTimeout.Minutes(),
		"timestamp":                    s.timestamp(),
	})
}
