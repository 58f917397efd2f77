package memory

import (
	"context"
	"errors"
)

// Durable table names.
const (
	TableSessions          = "conversation_sessions"
	TableSessionMemory     = "session_memory"
	TableEmotionScores     = "emotion_scores"
	TableEvaluationReports = "evaluation_reports"
)

var (
	// ErrInvalidName is returned for table or field names outside [a-z0-9_].
	ErrInvalidName = errors.New("memory: invalid table or field name")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("memory: store closed")
)

// Record is one JSON document in a durable table. The "id" field is the
// primary key; Upsert assigns one when it is missing.
type Record map[string]any

// Filter selects records from a table.
type Filter struct {
	Equals  map[string]any
	OrderBy string
	Desc    bool
	Limit   int
}

// DurableStore is the indefinite-retention document tier.
type DurableStore interface {
	Upsert(ctx context.Context, table string, rec Record) error
	Select(ctx context.Context, table string, f Filter) ([]Record, error)
	Close() error
}

// String returns the string at key, or "" when absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Float returns the number at key, or 0.
func (r Record) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
