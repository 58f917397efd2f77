// Package evaluation scores finished conversations.
//
// Quality is a token-overlap heuristic against a fixed set of reference
// question/answer pairs. Drift compares the mean confidence of Sophia's
// own emotion readings against a fixed baseline. A Monitor tracks active
// conversations and evaluates them once they go idle.
package evaluation

import (
	"strings"
)

// Case is one reference question with its expected answer and topic.
type Case struct {
	Query          string `json:"query"`
	ExpectedAnswer string `json:"expected_answer"`
	Context        string `json:"context"`
}

var referenceSet = []Case{
	{
		Query:          "What is DeFi?",
		ExpectedAnswer: "DeFi refers to decentralized financial services built on blockchain technology without traditional intermediaries",
		Context:        "DeFi basics and definition",
	},
	{
		Query:          "What are the risks of yield farming?",
		ExpectedAnswer: "Yield farming risks include impermanent loss, smart contract bugs, market volatility, and protocol risks",
		Context:        "DeFi risks and yield farming",
	},
	{
		Query:          "How does staking work?",
		ExpectedAnswer: "Staking involves locking cryptocurrency to support network operations and earn rewards",
		Context:        "Staking mechanism and rewards",
	},
	{
		Query:          "What is impermanent loss?",
		ExpectedAnswer: "Impermanent loss occurs when providing liquidity and token price ratios change unfavorably",
		Context:        "Liquidity provision risks",
	},
	{
		Query:          "How do I choose a safe DeFi protocol?",
		ExpectedAnswer: "Look for audited contracts, high TVL, established teams, and transparent tokenomics",
		Context:        "DeFi protocol evaluation criteria",
	},
	{
		Query:          "What is TVL in DeFi?",
		ExpectedAnswer: "TVL is Total Value Locked, representing assets deposited in a DeFi protocol",
		Context:        "DeFi metrics and indicators",
	},
	{
		Query:          "What are governance tokens?",
		ExpectedAnswer: "Governance tokens provide voting rights in protocol decisions and management",
		Context:        "DeFi governance and tokenomics",
	},
	{
		Query:          "What is slippage in trading?",
		ExpectedAnswer: "Slippage is price difference between trade placement and execution due to market movement",
		Context:        "DEX trading mechanics",
	},
	{
		Query:          "How do flash loans work?",
		ExpectedAnswer: "Flash loans allow borrowing without collateral if repaid within the same transaction",
		Context:        "Advanced DeFi mechanisms",
	},
	{
		Query:          "What are stablecoins?",
		ExpectedAnswer: "Stablecoins are cryptocurrencies designed to maintain stable value, usually pegged to USD",
		Context:        "Cryptocurrency basics and stablecoins",
	},
}

// ReferenceSet returns a copy of the reference question/answer pairs.
func ReferenceSet() []Case {
	return append([]Case(nil), referenceSet...)
}

// Scoring constants.
const (
	noContextFaithfulness = 0.7
	minFaithfulness       = 0.3
	keyTermBoost          = 0.2
	noReferenceScore      = 0.6
	querySimilarity       = 0.5
)

var keyTerms = []string{"defi", "yield", "staking", "protocol", "token", "blockchain"}

// Metrics are the quality scores of one answer, each in [0,1].
type Metrics struct {
	Faithfulness float64 `json:"faithfulness"`
	Relevance    float64 `json:"relevance"`
	Correctness  float64 `json:"correctness"`
	Average      float64 `json:"average"`
}

// Scorer computes quality metrics against a reference set.
type Scorer struct {
	refs []Case
}

// NewScorer creates a scorer. A nil refs uses ReferenceSet.
func NewScorer(refs []Case) *Scorer {
	if refs == nil {
		refs = ReferenceSet()
	}
	return &Scorer{refs: refs}
}

// Score rates answer to query given the retrieved context.
func (s *Scorer) Score(query, answer, context string) Metrics {
	m := Metrics{
		Faithfulness: Faithfulness(answer, context),
		Relevance:    Relevance(query, answer),
		Correctness:  s.Correctness(query, answer),
	}
	m.Average = (m.Faithfulness + m.Relevance + m.Correctness) / 3
	return m
}

// Faithfulness is the share of answer words found in context, floored at
// 0.3. Without context it is 0.7.
func Faithfulness(answer, context string) float64 {
	if context == "" {
		return noContextFaithfulness
	}
	aw := words(answer)
	if len(aw) == 0 {
		return 0
	}
	f := min(float64(overlap(aw, words(context)))/float64(len(aw)), 1)
	return max(f, minFaithfulness)
}

// Relevance is the share of query words found in the answer, plus a boost
// when the answer mentions a domain key term.
func Relevance(query, answer string) float64 {
	qw, aw := words(query), words(answer)
	if len(qw) == 0 || len(aw) == 0 {
		return 0
	}
	r := min(float64(overlap(qw, aw))/float64(len(qw)), 1)

	lower := strings.ToLower(answer)
	for _, t := range keyTerms {
		if strings.Contains(lower, t) {
			r += keyTermBoost
			break
		}
	}
	return min(r, 1)
}

// Correctness is the share of the matching reference answer's words found
// in answer. Queries with no similar reference score 0.6.
func (s *Scorer) Correctness(query, answer string) float64 {
	ref, ok := s.reference(query)
	if !ok {
		return noReferenceScore
	}
	tw := words(ref.ExpectedAnswer)
	if len(tw) == 0 {
		return 0
	}
	return min(float64(overlap(tw, words(answer)))/float64(len(tw)), 1)
}

func (s *Scorer) reference(query string) (Case, bool) {
	qw := words(query)
	for _, c := range s.refs {
		rw := words(c.Query)
		denom := max(len(qw), len(rw))
		if denom == 0 {
			continue
		}
		if float64(overlap(qw, rw))/float64(denom) > querySimilarity {
			return c, true
		}
	}
	return Case{}, false
}

func words(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
