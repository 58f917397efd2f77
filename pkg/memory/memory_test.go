package memory

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-sophia/pkg/emotion"
	"github.com/teslashibe/go-sophia/pkg/intent"
)

func turn(q string, in intent.Intent, user emotion.Label) Turn {
	return Turn{
		Query:            q,
		Reply:            "reply to " + q,
		UserEmotion:      emotion.Score{Label: user, Confidence: 0.8},
		AssistantEmotion: emotion.Score{Label: emotion.Positive, Confidence: 0.9},
		Intent:           in,
	}
}

func TestExtractTopics(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"How does staking work?", []string{"staking"}},
		{"Is yield farming on Uniswap safe?", []string{"yield_farming", "defi_protocols", "trading"}},
		{"Is farming on Aave safe?", []string{"yield_farming", "defi_protocols"}},
		{"Swap my ETHEREUM tokens", []string{"tokens", "trading"}},
		{"Become a validator and provide liquidity", []string{"staking", "yield_farming"}},
		{"hello there", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTopics(tt.query))
		})
	}
}

func TestMergeTopicsCapsAndDedups(t *testing.T) {
	got := mergeTopics([]string{"staking", "tokens"}, []string{"tokens", "trading"})
	assert.Equal(t, []string{"staking", "tokens", "trading"}, got)

	got = mergeTopics([]string{"a", "b", "c", "d", "e"}, []string{"f"})
	assert.Equal(t, []string{"b", "c", "d", "e", "f"}, got)
}

func TestSessionWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := newSession("s1", now)

	for i := 0; i < 5; i++ {
		s.add(turn(fmt.Sprintf("q%d", i), intent.SmallTalk, emotion.Neutral), now)
		require.LessOrEqual(t, len(s.Turns), MaxTurns)
		require.Len(t, s.UserTones, len(s.Turns))
		require.Len(t, s.AssistantTones, len(s.Turns))
	}

	assert.Equal(t, "q2", s.Turns[0].Query)
	assert.Equal(t, "q4", s.Turns[2].Query)
}

func TestSessionToneEvictionInLockstep(t *testing.T) {
	now := time.Now()
	s := newSession("s1", now)
	labels := []emotion.Label{emotion.Negative, emotion.Neutral, emotion.Positive, emotion.Negative}
	for _, l := range labels {
		s.add(turn("hi", intent.SmallTalk, l), now)
	}
	assert.Equal(t, labels[1:], s.UserTones)
}

func TestProject(t *testing.T) {
	t.Run("nil session", func(t *testing.T) {
		c := Project(nil)
		assert.True(t, c.Empty())
		assert.Equal(t, "", c.String())
	})

	t.Run("single turn has no intents", func(t *testing.T) {
		s := newSession("s1", time.Now())
		s.add(turn("what is staking", intent.DomainQuestion, emotion.Negative), time.Now())
		c := Project(s)
		assert.Equal(t, 1, c.ConversationTurns)
		assert.Equal(t, emotion.Negative, c.LastUserTone)
		assert.Equal(t, []string{"staking"}, c.LastTopics)
		assert.Empty(t, c.RecentIntents)
	})

	t.Run("last two intents", func(t *testing.T) {
		s := newSession("s1", time.Now())
		s.add(turn("hi", intent.SmallTalk, emotion.Neutral), time.Now())
		s.add(turn("I'm worried", intent.EmotionalSupport, emotion.Negative), time.Now())
		s.add(turn("what is a token", intent.DomainQuestion, emotion.Neutral), time.Now())
		c := Project(s)
		assert.Equal(t, []intent.Intent{intent.EmotionalSupport, intent.DomainQuestion}, c.RecentIntents)
	})
}

func TestContextString(t *testing.T) {
	c := Context{
		LastTopics:        []string{"staking", "tokens"},
		LastUserTone:      emotion.Negative,
		ConversationTurns: 2,
		RecentIntents:     []intent.Intent{intent.SmallTalk, intent.DomainQuestion},
	}
	assert.Equal(t,
		"Previous topics: staking, tokens | User's recent emotional state: negative | Recent conversation types: small_talk, domain_question",
		c.String())

	assert.Equal(t, "User's recent emotional state: neutral",
		Context{LastUserTone: emotion.Neutral, ConversationTurns: 1}.String())
}

func TestMergeTopicsKeepsFirstPosition(t *testing.T) {
	got := mergeTopics([]string{"staking", "tokens", "trading"}, []string{"staking"})
	assert.Equal(t, []string{"staking", "tokens", "trading"}, got)
}

func TestSessionTopicsAcrossTurns(t *testing.T) {
	now := time.Now()
	s := newSession("s1", now)
	for _, q := range []string{"staking", "yield", "uniswap", "bitcoin", "price", "stake again", "makerdao"} {
		s.add(turn(q, intent.DomainQuestion, emotion.Neutral), now)
	}
	assert.Equal(t, []string{"staking", "yield_farming", "defi_protocols", "trading", "tokens"}, s.Topics)
}
