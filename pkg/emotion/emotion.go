// Package emotion labels user and assistant utterances with a coarse
// sentiment. Models classify over a richer rail set which is collapsed to
// positive, neutral or negative through a fixed table.
package emotion

import (
	"errors"
	"math"
	"strings"
)

// Label is the coarse sentiment stored with every turn.
type Label string

const (
	Positive Label = "positive"
	Neutral  Label = "neutral"
	Negative Label = "negative"
)

// Valid reports whether l is one of the three output labels.
func (l Label) Valid() bool {
	return l == Positive || l == Neutral || l == Negative
}

// Rail is a fine-grained emotion emitted by a model.
type Rail string

const (
	Anger       Rail = "anger"
	Happiness   Rail = "happiness"
	Excitement  Rail = "excitement"
	Sadness     Rail = "sadness"
	NeutralRail Rail = "neutral"
	Frustration Rail = "frustration"
	Fear        Rail = "fear"
	Surprise    Rail = "surprise"
	Disgust     Rail = "disgust"
	Other       Rail = "other"
)

// Rails lists every rail in prompt order.
var Rails = []Rail{
	Anger, Happiness, Excitement, Sadness, NeutralRail,
	Frustration, Fear, Surprise, Disgust, Other,
}

var collapse = map[Rail]Label{
	Happiness:   Positive,
	Excitement:  Positive,
	Surprise:    Positive,
	NeutralRail: Neutral,
	Other:       Neutral,
	Anger:       Negative,
	Sadness:     Negative,
	Frustration: Negative,
	Fear:        Negative,
	Disgust:     Negative,
}

// Collapse maps a rail to its output label. Unknown rails map to Neutral.
func Collapse(r Rail) Label {
	if l, ok := collapse[r]; ok {
		return l
	}
	return Neutral
}

// ParseRail normalizes model output into a rail. Output that names no rail
// yields Other.
func ParseRail(s string) Rail {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".,!\"'` \n")
	r := Rail(s)
	if _, ok := collapse[r]; ok {
		return r
	}
	return Other
}

// Score is a label with a confidence in [0,1].
type Score struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

const (
	// FallbackConfidence is reported when every model fails.
	FallbackConfidence = 0.5

	// TextEntryConfidence seeds text-only turns, which skip audio analysis.
	TextEntryConfidence = 0.7

	// ModelConfidence is used when a model gives no usable confidence.
	ModelConfidence = 0.8
)

// Fallback returns the score used when classification fails.
func Fallback() Score {
	return Score{Label: Neutral, Confidence: FallbackConfidence}
}

// TextEntry returns the seeded score for typed input.
func TextEntry() Score {
	return Score{Label: Neutral, Confidence: TextEntryConfidence}
}

// Clamp bounds a confidence to [0,1]. NaN becomes 0.
func Clamp(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

var (
	// ErrNoInput is returned when a model gets an input kind it cannot read.
	ErrNoInput = errors.New("emotion: no input for model")

	// ErrNoMatch is returned by Lexicon when no keyword matches.
	ErrNoMatch = errors.New("emotion: no lexicon match")
)
