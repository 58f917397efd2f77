package evaluation

import (
	"time"

	"github.com/teslashibe/go-sophia/pkg/emotion"
	"github.com/teslashibe/go-sophia/pkg/memory"
)

// Drift constants.
const (
	BaselineConfidence = 0.81
	DriftThreshold     = 0.20
)

// Role is who an emotion sample was taken from.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// EmotionSample is one emotion reading. Write-once.
type EmotionSample struct {
	SessionID  string        `json:"session_id"`
	Role       Role          `json:"role"`
	Label      emotion.Label `json:"label"`
	Confidence float64       `json:"confidence"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Record is the durable emotion_scores row for s.
func (s EmotionSample) Record() memory.Record {
	return memory.Record{
		"session_id": s.SessionID,
		"role":       string(s.Role),
		"label":      string(s.Label),
		"confidence": s.Confidence,
		"created_at": s.Timestamp.UnixMilli(),
	}
}

// Drift is the result of comparing assistant confidence to the baseline.
type Drift struct {
	Alert    bool    `json:"drift_alert"`
	Baseline float64 `json:"baseline_confidence"`
	Current  float64 `json:"current_confidence"`
	Drop     float64 `json:"drop"`
}

// DetectDrift runs the default detector over samples.
func DetectDrift(samples []EmotionSample) Drift {
	return DriftDetector{}.Detect(samples)
}

// DriftDetector compares assistant confidence to a baseline. Zero fields
// use BaselineConfidence and DriftThreshold.
type DriftDetector struct {
	Baseline  float64
	Threshold float64
}

// Detect averages assistant-role confidences and alerts when the relative
// drop from the baseline exceeds the threshold. Without assistant samples
// the current confidence is the baseline.
func (dd DriftDetector) Detect(samples []EmotionSample) Drift {
	baseline, threshold := dd.Baseline, dd.Threshold
	if baseline <= 0 {
		baseline = BaselineConfidence
	}
	if threshold <= 0 {
		threshold = DriftThreshold
	}
	d := Drift{Baseline: baseline, Current: baseline}

	var sum float64
	var n int
	for _, s := range samples {
		if s.Role == RoleAssistant {
			sum += s.Confidence
			n++
		}
	}
	if n == 0 {
		return d
	}

	d.Current = sum / float64(n)
	d.Drop = (d.Baseline - d.Current) / d.Baseline
	d.Alert = d.Drop > threshold
	return d
}
