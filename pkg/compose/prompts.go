package compose

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-sophia/pkg/emotion"
	"github.com/teslashibe/go-sophia/pkg/intent"
)

// Fixed replies.
const (
	ClarifyReply   = "I didn't catch that. Could you say it again?"
	SafetyNetReply = "Hello! I'm Sophia, your DeFi mentor. Ask me about yield farming, staking, or other DeFi topics."
)

const brevity = " Keep responses under 50 words."

type persona struct {
	primary   string
	secondary string
}

var personas = map[intent.Intent]persona{
	intent.DomainQuestion: {
		primary:   "You are Sophia, a knowledgeable DeFi mentor. Use the provided FAQ context to give accurate, educational responses about DeFi concepts." + brevity,
		secondary: "You are Sophia, a knowledgeable DeFi mentor. Provide clear, educational responses about DeFi concepts." + brevity,
	},
	intent.EmotionalSupport: {
		primary:   "You are Sophia, an empathetic AI companion. Provide supportive and encouraging responses." + brevity,
		secondary: "You are Sophia, an empathetic AI companion. Provide supportive and encouraging responses." + brevity,
	},
	intent.SmallTalk: {
		primary:   "You are Sophia, a friendly AI assistant. Engage in casual conversation." + brevity,
		secondary: "You are Sophia, a friendly AI assistant. Engage in casual conversation." + brevity,
	},
}

// SystemPrompt returns the primary persona for in. Unknown intents get
// the small talk persona.
func SystemPrompt(in intent.Intent) string {
	return lookupPersona(in).primary
}

// SecondarySystemPrompt returns the persona used with the secondary provider.
func SecondarySystemPrompt(in intent.Intent) string {
	return lookupPersona(in).secondary
}

func lookupPersona(in intent.Intent) persona {
	if p, ok := personas[in]; ok {
		return p
	}
	return personas[intent.SmallTalk]
}

// staticReplies are checked in order against the lowercase transcript.
var staticReplies = []struct {
	keywords []string
	reply    string
}{
	{[]string{"yield farming"}, "Yield farming is lending crypto for rewards, but it's risky. Let's discuss safely."},
	{[]string{"defi", "decentralized finance"}, "DeFi offers financial services without traditional banks. What specific aspect interests you?"},
	{[]string{"staking"}, "Staking lets you earn rewards by locking up crypto. It's generally safer than yield farming."},
	{[]string{"liquidity"}, "Liquidity pools enable trading on DEXs. You can provide liquidity to earn fees."},
	{[]string{"smart contract"}, "Smart contracts automate DeFi transactions. Always verify contract security first."},
}

// StaticReply returns the keyword-triggered sentence for transcript and
// true, or SafetyNetReply and false when no keyword matches.
func StaticReply(transcript string) (string, bool) {
	lower := strings.ToLower(transcript)
	for _, r := range staticReplies {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r.reply, true
			}
		}
	}
	return SafetyNetReply, false
}

// UserPrompt builds the primary prompt from the emotion, the memory
// context line and the knowledge context.
func UserPrompt(transcript string, e emotion.Score, memoryContext, knowledgeContext string) string {
	parts := []string{fmt.Sprintf("The user seems %s (confidence: %.2f).", e.Label, e.Confidence)}
	if memoryContext != "" {
		parts = append(parts, "Conversation context: "+memoryContext)
	}
	if knowledgeContext != "" {
		parts = append(parts, "Relevant knowledge base:\n"+knowledgeContext)
	}
	parts = append(parts, "User question: "+transcript)
	return strings.Join(parts, " | ")
}
