package emotion

import (
	"context"
	"errors"
	"log/slog"

	"github.com/teslashibe/go-sophia/internal/log"
)

// Classifier runs its models in order and returns the first success.
// It never fails: when all models fail the result is Fallback().
type Classifier struct {
	models []Model
	logger *slog.Logger
}

// NewClassifier creates a classifier over models. A nil logger uses the
// default logger.
func NewClassifier(logger *slog.Logger, models ...Model) *Classifier {
	return &Classifier{
		models: models,
		logger: log.Component(logger, "emotion.classifier"),
	}
}

// ClassifyText labels typed or transcribed text.
func (c *Classifier) ClassifyText(ctx context.Context, text string) Score {
	return c.classify(ctx, Input{Text: text})
}

// ClassifyAudio labels raw speech.
func (c *Classifier) ClassifyAudio(ctx context.Context, audio []byte) Score {
	return c.classify(ctx, Input{Audio: audio})
}

func (c *Classifier) classify(ctx context.Context, in Input) Score {
	for _, m := range c.models {
		rail, conf, err := m.Classify(ctx, in)
		if err != nil {
			if !errors.Is(err, ErrNoInput) {
				c.logger.Warn("emotion model failed, trying next",
					"model", m.Name(),
					"error", err,
				)
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}

		score := Score{Label: Collapse(rail), Confidence: Clamp(conf)}
		c.logger.Debug("emotion classified",
			"model", m.Name(),
			"rail", rail,
			"label", score.Label,
			"confidence", score.Confidence,
		)
		return score
	}
	return Fallback()
}
