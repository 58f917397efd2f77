// Package memory keeps a short sliding window of each conversation.
//
// A Session holds the last three turns, the last five topic tags and the
// tone history of both speakers. Sessions live in a FastCache with a TTL
// and every update is also written to a DurableStore, which serves as the
// fallback when the cache misses or is down.
package memory

import (
	"time"

	"github.com/teslashibe/go-sophia/pkg/emotion"
	"github.com/teslashibe/go-sophia/pkg/intent"
)

const (
	// MaxTurns is the number of turns kept per session.
	MaxTurns = 3

	// MaxTopics is the number of topic tags kept per session.
	MaxTopics = 5

	// DefaultTTL is how long a session stays in the fast cache.
	DefaultTTL = time.Hour
)

// Turn is one completed user utterance and reply. Immutable once stored.
type Turn struct {
	Query            string        `json:"query"`
	Reply            string        `json:"reply"`
	UserEmotion      emotion.Score `json:"user_emotion"`
	AssistantEmotion emotion.Score `json:"assistant_emotion"`
	Intent           intent.Intent `json:"intent"`
	Timestamp        time.Time     `json:"timestamp"`
}

// Session is the windowed memory of one conversation.
// len(Turns) <= MaxTurns, len(Topics) <= MaxTopics and both tone
// histories have exactly len(Turns) entries.
type Session struct {
	ID             string          `json:"session_id"`
	Turns          []Turn          `json:"turns"`
	Topics         []string        `json:"topics"`
	UserTones      []emotion.Label `json:"user_tone_history"`
	AssistantTones []emotion.Label `json:"assistant_tone_history"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now, UpdatedAt: now}
}

// add appends turn, evicting the oldest turns and tones beyond MaxTurns,
// then merges the turn's topics.
func (s *Session) add(t Turn, now time.Time) {
	s.Turns = append(s.Turns, t)
	s.UserTones = append(s.UserTones, t.UserEmotion.Label)
	s.AssistantTones = append(s.AssistantTones, t.AssistantEmotion.Label)

	if n := len(s.Turns); n > MaxTurns {
		s.Turns = append([]Turn(nil), s.Turns[n-MaxTurns:]...)
		s.UserTones = append([]emotion.Label(nil), s.UserTones[n-MaxTurns:]...)
		s.AssistantTones = append([]emotion.Label(nil), s.AssistantTones[n-MaxTurns:]...)
	}

	s.Topics = mergeTopics(s.Topics, ExtractTopics(t.Query))
	s.UpdatedAt = now
}

// Context is the read-only projection used to build prompts.
type Context struct {
	LastTopics        []string        `json:"last_topics,omitempty"`
	LastUserTone      emotion.Label   `json:"last_user_tone,omitempty"`
	ConversationTurns int             `json:"conversation_turns"`
	RecentIntents     []intent.Intent `json:"recent_intents,omitempty"`
}

// Project derives the prompt context from a session. A nil session gives
// the zero Context.
func Project(s *Session) Context {
	if s == nil {
		return Context{}
	}
	c := Context{
		LastTopics:        append([]string(nil), s.Topics...),
		LastUserTone:      emotion.Neutral,
		ConversationTurns: len(s.Turns),
	}
	if n := len(s.UserTones); n > 0 {
		c.LastUserTone = s.UserTones[n-1]
	}
	if n := len(s.Turns); n >= 2 {
		for _, t := range s.Turns[n-2:] {
			c.RecentIntents = append(c.RecentIntents, t.Intent)
		}
	}
	return c
}

// Empty reports whether there is no memory behind c.
func (c Context) Empty() bool {
	return c.ConversationTurns == 0 && c.LastUserTone == "" && len(c.LastTopics) == 0
}

// String renders c as a single prompt line, or "" when empty.
func (c Context) String() string {
	var parts []string
	if len(c.LastTopics) > 0 {
		parts = append(parts, "Previous topics: "+joinStrings(c.LastTopics))
	}
	if c.LastUserTone != "" {
		parts = append(parts, "User's recent emotional state: "+string(c.LastUserTone))
	}
	if len(c.RecentIntents) > 0 {
		names := make([]string, len(c.RecentIntents))
		for i, in := range c.RecentIntents {
			names[i] = string(in)
		}
		parts = append(parts, "Recent conversation types: "+joinStrings(names))
	}
	return joinParts(parts)
}
