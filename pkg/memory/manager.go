package memory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/go-sophia/internal/log"
	"github.com/teslashibe/go-sophia/pkg/emotion"
	"github.com/teslashibe/go-sophia/pkg/intent"
)

// Config configures a Manager.
type Config struct {
	TTL    time.Duration
	Logger *slog.Logger
	Now    func() time.Time
}

// Option configures a Manager.
type Option func(*Config)

// WithTTL sets the fast cache TTL.
func WithTTL(d time.Duration) Option {
	return func(c *Config) { c.TTL = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.Now = now }
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{TTL: DefaultTTL, Now: time.Now}
}

// Manager reads and updates session memory across the fast and durable
// tiers. Either tier may be nil. Errors from either tier are logged and
// never returned.
type Manager struct {
	cache FastCache
	store DurableStore
	ttl   time.Duration
	now   func() time.Time
	log   *slog.Logger
}

// NewManager creates a Manager over cache and store.
func NewManager(cache FastCache, store DurableStore, opts ...Option) *Manager {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		cache: cache,
		store: store,
		ttl:   cfg.TTL,
		now:   cfg.Now,
		log:   log.Component(cfg.Logger, "memory.manager"),
	}
}

func cacheKey(id string) string {
	return "session:" + id
}

// Get returns the session for id. The fast cache is tried first; on a miss
// or cache error the latest durable turn is rebuilt into a one-turn session.
func (m *Manager) Get(ctx context.Context, id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}

	if m.cache != nil {
		data, err := m.cache.Get(ctx, cacheKey(id))
		switch {
		case err == nil:
			var s Session
			uerr := json.Unmarshal(data, &s)
			if uerr == nil {
				return &s, true
			}
			m.log.Warn("corrupt cached session", "session_id", id, "error", uerr)
		case errors.Is(err, ErrCacheMiss):
		default:
			m.log.Warn("cache read failed", "session_id", id, "error", err)
		}
	}

	if m.store == nil {
		return nil, false
	}
	recs, err := m.store.Select(ctx, TableSessions, Filter{
		Equals:  map[string]any{"id": id},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   1,
	})
	if err != nil {
		m.log.Warn("durable read failed", "session_id", id, "error", err)
		return nil, false
	}
	if len(recs) == 0 {
		return nil, false
	}
	return m.fromRecord(id, recs[0]), true
}

func (m *Manager) fromRecord(id string, rec Record) *Session {
	ts := m.now()
	if ms := rec.Float("created_at"); ms > 0 {
		ts = time.UnixMilli(int64(ms))
	}
	turn := Turn{
		Query: rec.String("transcript"),
		Reply: rec.String("reply"),
		UserEmotion: emotion.Score{
			Label:      labelOr(rec.String("user_emotion_label")),
			Confidence: rec.Float("user_emotion_confidence"),
		},
		AssistantEmotion: emotion.Score{
			Label:      labelOr(rec.String("assistant_emotion_label")),
			Confidence: rec.Float("assistant_emotion_confidence"),
		},
		Intent:    intentOr(rec.String("intent")),
		Timestamp: ts,
	}
	s := newSession(id, ts)
	s.add(turn, ts)
	return s
}

func intentOr(s string) intent.Intent {
	if i := intent.Intent(s); i.Valid() {
		return i
	}
	return intent.Unknown
}

func labelOr(s string) emotion.Label {
	if l := emotion.Label(s); l.Valid() {
		return l
	}
	return emotion.Neutral
}

// Update merges turn into the session for id and writes both tiers.
// The merged session is returned even when the writes fail.
func (m *Manager) Update(ctx context.Context, id string, turn Turn) *Session {
	now := m.now()
	if turn.Timestamp.IsZero() {
		turn.Timestamp = now
	}

	s, ok := m.Get(ctx, id)
	if !ok {
		s = newSession(id, now)
	}
	s.add(turn, now)

	if m.cache != nil {
		if data, err := json.Marshal(s); err != nil {
			m.log.Error("encode session", "session_id", id, "error", err)
		} else if err := m.cache.Set(ctx, cacheKey(id), data, m.ttl); err != nil {
			m.log.Warn("cache write failed", "session_id", id, "error", err)
		}
	}

	if m.store != nil {
		m.persist(ctx, s, turn)
	}

	m.log.Debug("session updated",
		"session_id", id,
		"turns", len(s.Turns),
		"topics", s.Topics)
	return s
}

func (m *Manager) persist(ctx context.Context, s *Session, turn Turn) {
	row := Record{
		"id":                           s.ID,
		"transcript":                   turn.Query,
		"reply":                        turn.Reply,
		"user_emotion_label":           string(turn.UserEmotion.Label),
		"user_emotion_confidence":      turn.UserEmotion.Confidence,
		"assistant_emotion_label":      string(turn.AssistantEmotion.Label),
		"assistant_emotion_confidence": turn.AssistantEmotion.Confidence,
		"intent":                       string(turn.Intent),
		"created_at":                   turn.Timestamp.UnixMilli(),
	}
	if err := m.store.Upsert(ctx, TableSessions, row); err != nil {
		m.log.Warn("durable turn write failed", "session_id", s.ID, "error", err)
	}

	summary := Record{
		"id":                     s.ID,
		"topics":                 s.Topics,
		"turn_count":             len(s.Turns),
		"last_user_emotion":      lastLabel(s.UserTones),
		"last_assistant_emotion": lastLabel(s.AssistantTones),
		"created_at":             s.CreatedAt.UnixMilli(),
		"updated_at":             s.UpdatedAt.UnixMilli(),
	}
	if err := m.store.Upsert(ctx, TableSessionMemory, summary); err != nil {
		m.log.Warn("durable summary write failed", "session_id", s.ID, "error", err)
	}
}

func lastLabel(ls []emotion.Label) string {
	if len(ls) == 0 {
		return string(emotion.Neutral)
	}
	return string(ls[len(ls)-1])
}

// ContextForLLM returns the prompt projection of the session for id,
// or the zero Context when there is no memory.
func (m *Manager) ContextForLLM(ctx context.Context, id string) Context {
	s, ok := m.Get(ctx, id)
	if !ok {
		return Context{}
	}
	return Project(s)
}
