// Package intent assigns a conversational intent to a transcript.
package intent

import "strings"

// Intent is one of the fixed conversational intents.
type Intent string

const (
	// DomainQuestion is a DeFi knowledge question. Only this intent triggers
	// knowledge retrieval.
	DomainQuestion Intent = "domain_question"

	// EmotionalSupport is a request for reassurance or encouragement.
	EmotionalSupport Intent = "emotional_support"

	// SmallTalk is everything else.
	SmallTalk Intent = "small_talk"

	// Unknown marks a turn reconstructed from the durable store whose
	// stored intent is missing or unrecognized.
	Unknown Intent = "unknown"
)

// rule maps a keyword set to the intent it signals. Rules are checked in
// order, so earlier rules win ties.
type rule struct {
	intent   Intent
	keywords []string
}

var rules = [...]rule{
	{DomainQuestion, []string{
		"defi", "yield", "staking", "liquidity", "farming", "token",
		"swap", "protocol", "apy", "apr", "pool", "vault", "ethereum",
	}},
	{EmotionalSupport, []string{
		"sad", "worried", "anxious", "happy", "excited",
		"confused", "frustrated", "help me",
	}},
}

// Classify returns the intent for text. It is pure: the same text always
// yields the same intent.
func Classify(text string) Intent {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if containsAny(lower, r.keywords) {
			return r.intent
		}
	}
	return SmallTalk
}

// Valid reports whether i is one of the classifier outputs.
func (i Intent) Valid() bool {
	switch i {
	case DomainQuestion, EmotionalSupport, SmallTalk:
		return true
	}
	return false
}

func (i Intent) String() string {
	return string(i)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
