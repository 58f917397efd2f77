package emotion

import (
	"context"
	"strings"
)

// lexiconConfidence is lower than ModelConfidence since keyword hits are
// weak evidence.
const lexiconConfidence = 0.6

// lexiconRules are checked in order; the first rail with a hit wins.
var lexiconRules = []struct {
	rail     Rail
	keywords []string
}{
	{Anger, []string{"angry", "furious", "hate", "mad at"}},
	{Frustration, []string{"frustrated", "annoyed", "stuck", "doesn't work", "not working"}},
	{Fear, []string{"afraid", "scared", "worried", "anxious", "nervous", "panic"}},
	{Sadness, []string{"sad", "lost everything", "depressed", "upset", "disappointed"}},
	{Disgust, []string{"disgusting", "gross", "scam"}},
	{Excitement, []string{"excited", "can't wait", "amazing", "awesome", "wow"}},
	{Happiness, []string{"happy", "glad", "great", "thanks", "thank you", "love"}},
	{Surprise, []string{"surprised", "unexpected", "really?"}},
}

// Lexicon is a keyword classifier for text. It never calls out and is
// meant as the last model in a Classifier.
type Lexicon struct{}

func (Lexicon) Name() string { return "lexicon" }

// Classify implements Model.
func (Lexicon) Classify(_ context.Context, in Input) (Rail, float64, error) {
	text := strings.ToLower(in.Text)
	if strings.TrimSpace(text) == "" {
		return "", 0, ErrNoInput
	}
	for _, r := range lexiconRules {
		for _, k := range r.keywords {
			if strings.Contains(text, k) {
				return r.rail, lexiconConfidence, nil
			}
		}
	}
	return "", 0, ErrNoMatch
}
