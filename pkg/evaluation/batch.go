package evaluation

import (
	"context"
	"time"

	"github.com/teslashibe/go-sophia/pkg/compose"
	"github.com/teslashibe/go-sophia/pkg/emotion"
	"github.com/teslashibe/go-sophia/pkg/intent"
	"github.com/teslashibe/go-sophia/pkg/knowledge"
)

// TargetScore is the mean quality a batch run must reach.
const TargetScore = 0.75

// Composer produces a reply for a turn.
type Composer interface {
	Compose(ctx context.Context, in compose.Input) compose.Reply
}

// CaseResult is the outcome of one batch case.
type CaseResult struct {
	Query   string       `json:"query"`
	Reply   string       `json:"reply"`
	Tier    compose.Tier `json:"tier"`
	Metrics Metrics      `json:"metrics"`
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Results      []CaseResult  `json:"results"`
	TotalQueries int           `json:"total_queries"`
	AverageScore float64       `json:"average_score"`
	TargetScore  float64       `json:"target_score"`
	TargetMet    bool          `json:"target_met"`
	Duration     time.Duration `json:"duration"`
}

// EvaluateBatch answers each case with composer and scores the replies.
// A nil cases runs ReferenceSet. Correctness is judged against the
// expected answers of cases itself. Faithfulness is measured against the
// retrieved knowledge, or the case context when nothing was retrieved.
// A cancelled context stops the run with the cases scored so far.
func EvaluateBatch(ctx context.Context, composer Composer, cases []Case) BatchResult {
	if cases == nil {
		cases = ReferenceSet()
	}
	scorer := NewScorer(cases)
	start := time.Now()

	res := BatchResult{TargetScore: TargetScore}
	var sum float64
	for _, c := range cases {
		if ctx.Err() != nil {
			break
		}
		reply := composer.Compose(ctx, compose.Input{
			Transcript: c.Query,
			Intent:     intent.Classify(c.Query),
			Emotion:    emotion.TextEntry(),
		})

		kctx := c.Context
		if len(reply.KnowledgeHits) > 0 {
			kctx = knowledge.FormatContext(reply.KnowledgeHits)
		}
		m := scorer.Score(c.Query, reply.Text, kctx)
		sum += m.Average
		res.Results = append(res.Results, CaseResult{
			Query:   c.Query,
			Reply:   reply.Text,
			Tier:    reply.Tier,
			Metrics: m,
		})
	}

	res.TotalQueries = len(res.Results)
	if res.TotalQueries > 0 {
		res.AverageScore = sum / float64(res.TotalQueries)
	}
	res.TargetMet = res.AverageScore >= TargetScore
	res.Duration = time.Since(start)
	return res
}
