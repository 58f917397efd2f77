package evaluation

import (
	"fmt"
	"math"
	"time"

	"github.com/teslashibe/go-sophia/pkg/emotion"
	"github.com/teslashibe/go-sophia/pkg/intent"
	"github.com/teslashibe/go-sophia/pkg/memory"
)

// Message is one completed turn as seen by the monitor.
type Message struct {
	Query            string        `json:"query"`
	Reply            string        `json:"reply"`
	Context          string        `json:"context,omitempty"`
	UserEmotion      emotion.Score `json:"user_emotion"`
	AssistantEmotion emotion.Score `json:"assistant_emotion"`
	Intent           intent.Intent `json:"intent"`
	Timestamp        time.Time     `json:"timestamp"`
}

// Samples returns the user and assistant emotion samples of m.
func (m Message) Samples(sessionID string) []EmotionSample {
	return []EmotionSample{
		{
			SessionID:  sessionID,
			Role:       RoleUser,
			Label:      m.UserEmotion.Label,
			Confidence: m.UserEmotion.Confidence,
			Timestamp:  m.Timestamp,
		},
		{
			SessionID:  sessionID,
			Role:       RoleAssistant,
			Label:      m.AssistantEmotion.Label,
			Confidence: m.AssistantEmotion.Confidence,
			Timestamp:  m.Timestamp,
		},
	}
}

// Report is the evaluation of one conversation.
type Report struct {
	ID                 string          `json:"id"`
	SessionID          string          `json:"session_id"`
	Quality            *Metrics        `json:"quality,omitempty"`
	Samples            []EmotionSample `json:"samples"`
	DriftAlert         bool            `json:"drift_alert"`
	BaselineConfidence float64         `json:"baseline_confidence"`
	CurrentConfidence  float64         `json:"current_confidence"`
	MessageCount       int             `json:"message_count"`
	Duration           time.Duration   `json:"duration"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Summary is the compact view of a report returned to API callers.
type Summary struct {
	SessionID        string   `json:"session_id"`
	TotalMessages    int      `json:"total_messages"`
	DurationMinutes  float64  `json:"conversation_duration_minutes"`
	QualityAverage   *float64 `json:"quality_average"`
	EmotionSamples   int      `json:"emotion_samples"`
	DriftAlert       bool     `json:"drift_alert"`
	ConfidenceChange string   `json:"confidence_change"`
}

// Summary projects r for display.
func (r *Report) Summary() Summary {
	s := Summary{
		SessionID:        r.SessionID,
		TotalMessages:    r.MessageCount,
		DurationMinutes:  math.Round(r.Duration.Minutes()*100) / 100,
		EmotionSamples:   len(r.Samples),
		DriftAlert:       r.DriftAlert,
		ConfidenceChange: fmt.Sprintf("%.2f -> %.2f", r.BaselineConfidence, r.CurrentConfidence),
	}
	if r.Quality != nil {
		avg := r.Quality.Average
		s.QualityAverage = &avg
	}
	return s
}

// Record is the durable evaluation_reports row for r.
func (r *Report) Record() memory.Record {
	rec := memory.Record{
		"id":                  r.ID,
		"session_id":          r.SessionID,
		"drift_alert":         r.DriftAlert,
		"baseline_confidence": r.BaselineConfidence,
		"current_confidence":  r.CurrentConfidence,
		"message_count":       r.MessageCount,
		"emotion_samples":     len(r.Samples),
		"duration_ms":         r.Duration.Milliseconds(),
		"created_at":          r.CreatedAt.UnixMilli(),
	}
	if q := r.Quality; q != nil {
		rec["faithfulness"] = q.Faithfulness
		rec["relevance"] = q.Relevance
		rec["correctness"] = q.Correctness
		rec["quality_average"] = q.Average
	}
	return rec
}

// SessionStatus describes one active conversation.
type SessionStatus struct {
	SessionID            string        `json:"session_id"`
	TotalMessages        int           `json:"total_messages"`
	ConversationDuration time.Duration `json:"conversation_duration"`
	IdleFor              time.Duration `json:"idle_for"`
}

// Status is a snapshot of the monitor registry.
type Status struct {
	ActiveCount int             `json:"active_conversations_count"`
	Sessions    []SessionStatus `json:"active_conversations"`
	IdleTimeout time.Duration   `json:"conversation_timeout"`
}
