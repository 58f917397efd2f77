package web

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-sophia/pkg/orchestrator"
	"github.com/teslashibe/go-sophia/pkg/tts"
)

const wsWriteWait = 10 * time.Second

// StreamRequest is one client frame on /ws/turn.
type StreamRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// StreamEvent is a server text frame on /ws/turn. Audio is sent as
// binary frames between the last "text" event and "done".
type StreamEvent struct {
	Type   string               `json:"type"`
	Delta  string               `json:"delta,omitempty"`
	Format *tts.AudioFormat     `json:"format,omitempty"`
	Result *orchestrator.Result `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// wsSink forwards a streamed turn to the socket. The handler goroutine is
// the only writer.
type wsSink struct {
	conn       *websocket.Conn
	sentFormat bool
}

func (w *wsSink) write(ev StreamEvent) error {
	w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteJSON(ev)
}

func (w *wsSink) Text(delta string) error {
	return w.write(StreamEvent{Type: "text", Delta: delta})
}

// Audio announces the format once, then sends chunks as binary frames.
func (w *wsSink) Audio(chunk []byte, format tts.AudioFormat) error {
	if !w.sentFormat {
		if err := w.write(StreamEvent{Type: "audio", Format: &format}); err != nil {
			return err
		}
		w.sentFormat = true
	}
	w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

// handleTurnWS runs one streamed turn per client frame until the client
// disconnects. The first session id seen, sent by the client or assigned
// on the first turn, is kept for the rest of the connection.
func (s *Server) handleTurnWS(c *websocket.Conn) {
	var sessionID string
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		sink := &wsSink{conn: c}
		var req StreamRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Text == "" {
			if sink.write(StreamEvent{Type: "error", Error: "expected {\"session_id\",\"text\"}"}) != nil {
				return
			}
			continue
		}
		if sessionID == "" {
			sessionID = req.SessionID
		}

		res, err := s.orch.StreamText(s.base, sessionID, req.Text, sink)
		if err != nil {
			s.log.Warn("streamed turn failed", "session_id", sessionID, "error", err)
			if sink.write(StreamEvent{Type: "error", Error: "turn failed"}) != nil {
				return
			}
			continue
		}
		if sessionID == "" {
			sessionID = res.SessionID
		}
		if sink.write(StreamEvent{Type: "done", Result: res}) != nil {
			return
		}
	}
}

func (s *Server) handleEvaluationsWS(c *websocket.Conn) {
	if err := s.evalHub.Serve(c); err != nil {
		s.log.Debug("evaluation subscriber rejected", "error", err)
	}
}
