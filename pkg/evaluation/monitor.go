package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	rcron "github.com/robfig/cron/v3"

	"github.com/teslashibe/go-sophia/internal/log"
	"github.com/teslashibe/go-sophia/pkg/memory"
)

// Monitor defaults.
const (
	DefaultIdleTimeout = 5 * time.Minute
	DefaultSchedule    = "@every 1m"
)

// ErrAlreadyStarted is returned by Start on a running monitor.
var ErrAlreadyStarted = errors.New("evaluation: monitor already started")

// Listener receives every report the monitor produces.
type Listener interface {
	OnReport(r *Report)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(r *Report)

// OnReport implements Listener.
func (f ListenerFunc) OnReport(r *Report) { f(r) }

// Config configures a Monitor.
type Config struct {
	IdleTimeout time.Duration
	Schedule    string
	Drift       DriftDetector
	Scorer      *Scorer
	Store       memory.DurableStore
	Listeners   []Listener
	Logger      *slog.Logger
	Now         func() time.Time
}

// Option configures a Monitor.
type Option func(*Config)

// WithIdleTimeout sets how long a conversation may be idle before it is
// considered finished.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) { c.IdleTimeout = d }
}

// WithSchedule sets the cron expression for the periodic sweep.
func WithSchedule(expr string) Option {
	return func(c *Config) { c.Schedule = expr }
}

// WithDrift sets the drift baseline and threshold.
func WithDrift(baseline, threshold float64) Option {
	return func(c *Config) { c.Drift = DriftDetector{Baseline: baseline, Threshold: threshold} }
}

// WithScorer sets the quality scorer.
func WithScorer(s *Scorer) Option {
	return func(c *Config) { c.Scorer = s }
}

// WithStore sets the durable store reports are written to.
func WithStore(s memory.DurableStore) Option {
	return func(c *Config) { c.Store = s }
}

// WithListener registers a report listener.
func WithListener(l Listener) Option {
	return func(c *Config) { c.Listeners = append(c.Listeners, l) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.Now = now }
}

// DefaultConfig returns monitor defaults.
func DefaultConfig() Config {
	return Config{
		IdleTimeout: DefaultIdleTimeout,
		Schedule:    DefaultSchedule,
		Now:         time.Now,
	}
}

type entry struct {
	sessionID    string
	messages     []Message
	startedAt    time.Time
	lastActivity time.Time
}

// Monitor tracks active conversations and evaluates them when they finish.
// It is safe for concurrent use.
type Monitor struct {
	cfg    Config
	scorer *Scorer
	log    *slog.Logger

	mu        sync.Mutex
	entries   map[string]*entry
	listeners []Listener

	cronMu sync.Mutex
	cron   *rcron.Cron
	stopCh chan struct{}
}

// NewMonitor creates a monitor.
func NewMonitor(opts ...Option) *Monitor {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = NewScorer(nil)
	}
	return &Monitor{
		cfg:       cfg,
		scorer:    scorer,
		log:       log.Component(cfg.Logger, "evaluation.monitor"),
		entries:   make(map[string]*entry),
		listeners: append([]Listener(nil), cfg.Listeners...),
	}
}

// Subscribe registers l for future reports.
func (m *Monitor) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Collect appends msg to the conversation for id and refreshes its
// last activity.
func (m *Monitor) Collect(id string, msg Message) {
	now := m.cfg.Now()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		e = &entry{sessionID: id, startedAt: now}
		m.entries[id] = e
	}
	e.messages = append(e.messages, msg)
	e.lastActivity = now
}

// Messages returns a copy of the messages collected for id.
func (m *Monitor) Messages(id string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil
	}
	return append([]Message(nil), e.messages...)
}

// CheckFinished removes and evaluates every conversation idle longer than
// the idle timeout.
func (m *Monitor) CheckFinished(ctx context.Context) []*Report {
	now := m.cfg.Now()

	m.mu.Lock()
	var finished []*entry
	for id, e := range m.entries {
		if now.Sub(e.lastActivity) > m.cfg.IdleTimeout {
			finished = append(finished, e)
			delete(m.entries, id)
		}
	}
	m.mu.Unlock()

	sort.Slice(finished, func(i, j int) bool {
		return finished[i].lastActivity.Before(finished[j].lastActivity)
	})

	reports := make([]*Report, 0, len(finished))
	for _, e := range finished {
		reports = append(reports, m.evaluate(ctx, e.sessionID, e.messages, e.lastActivity.Sub(e.startedAt)))
	}
	if len(reports) > 0 {
		m.log.Info("evaluated finished conversations", "count", len(reports))
	}
	return reports
}

// Force evaluates the conversation for id immediately and removes it from
// the registry. It reports false when id is not active.
func (m *Monitor) Force(ctx context.Context, id string) (*Report, bool) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
	}
	m.mu.Unlock()

	if !ok {
		return nil, false
	}
	return m.evaluate(ctx, id, e.messages, e.lastActivity.Sub(e.startedAt)), true
}

// Status returns a snapshot of the active conversations, oldest first.
func (m *Monitor) Status() Status {
	now := m.cfg.Now()

	m.mu.Lock()
	sessions := make([]SessionStatus, 0, len(m.entries))
	for id, e := range m.entries {
		sessions = append(sessions, SessionStatus{
			SessionID:            id,
			TotalMessages:        len(e.messages),
			ConversationDuration: e.lastActivity.Sub(e.startedAt),
			IdleFor:              now.Sub(e.lastActivity),
		})
	}
	m.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].ConversationDuration != sessions[j].ConversationDuration {
			return sessions[i].ConversationDuration > sessions[j].ConversationDuration
		}
		return sessions[i].SessionID < sessions[j].SessionID
	})
	return Status{
		ActiveCount: len(sessions),
		Sessions:    sessions,
		IdleTimeout: m.cfg.IdleTimeout,
	}
}

// Evaluate scores msgs as the conversation id without touching the
// registry. The duration spans the first and last message timestamps.
func (m *Monitor) Evaluate(ctx context.Context, id string, msgs []Message) *Report {
	var d time.Duration
	if n := len(msgs); n > 1 {
		d = msgs[n-1].Timestamp.Sub(msgs[0].Timestamp)
	}
	return m.evaluate(ctx, id, msgs, d)
}

func (m *Monitor) evaluate(ctx context.Context, id string, msgs []Message, d time.Duration) *Report {
	r := &Report{
		ID:           uuid.NewString(),
		SessionID:    id,
		MessageCount: len(msgs),
		Duration:     d,
		CreatedAt:    m.cfg.Now(),
	}

	var sum Metrics
	var scored int
	for _, msg := range msgs {
		r.Samples = append(r.Samples, msg.Samples(id)...)
		if msg.Query == "" || msg.Reply == "" {
			continue
		}
		q := m.scorer.Score(msg.Query, msg.Reply, msg.Context)
		sum.Faithfulness += q.Faithfulness
		sum.Relevance += q.Relevance
		sum.Correctness += q.Correctness
		sum.Average += q.Average
		scored++
	}
	if scored > 0 {
		n := float64(scored)
		r.Quality = &Metrics{
			Faithfulness: sum.Faithfulness / n,
			Relevance:    sum.Relevance / n,
			Correctness:  sum.Correctness / n,
			Average:      sum.Average / n,
		}
	}

	drift := m.cfg.Drift.Detect(r.Samples)
	r.DriftAlert = drift.Alert
	r.BaselineConfidence = drift.Baseline
	r.CurrentConfidence = drift.Current

	if drift.Alert {
		m.log.Warn("emotion drift detected",
			"session_id", id,
			"baseline", drift.Baseline,
			"current", drift.Current)
	}

	m.persist(ctx, r)
	m.publish(r)
	return r
}

func (m *Monitor) persist(ctx context.Context, r *Report) {
	if m.cfg.Store == nil {
		return
	}
	if err := m.cfg.Store.Upsert(ctx, memory.TableEvaluationReports, r.Record()); err != nil {
		m.log.Warn("report write failed", "session_id", r.SessionID, "error", err)
	}
}

func (m *Monitor) publish(r *Report) {
	m.mu.Lock()
	ls := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range ls {
		l.OnReport(r)
	}
}

// Start runs CheckFinished on the configured schedule until ctx is done
// or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.cronMu.Lock()
	defer m.cronMu.Unlock()
	if m.cron != nil {
		return ErrAlreadyStarted
	}

	c := rcron.New()
	if _, err := c.AddFunc(m.cfg.Schedule, func() {
		m.CheckFinished(context.WithoutCancel(ctx))
	}); err != nil {
		return fmt.Errorf("evaluation: schedule %q: %w", m.cfg.Schedule, err)
	}
	c.Start()

	stopCh := make(chan struct{})
	m.cron = c
	m.stopCh = stopCh

	go func() {
		select {
		case <-ctx.Done():
			m.Stop()
		case <-stopCh:
		}
	}()

	m.log.Info("evaluation sweep started",
		"schedule", m.cfg.Schedule,
		"idle_timeout", m.cfg.IdleTimeout)
	return nil
}

// Stop halts the periodic sweep, waiting briefly for a running sweep.
func (m *Monitor) Stop() {
	m.cronMu.Lock()
	c, stopCh := m.cron, m.stopCh
	m.cron, m.stopCh = nil, nil
	m.cronMu.Unlock()

	if c == nil {
		return
	}
	close(stopCh)

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		m.log.Warn("stop timeout waiting for running sweep")
	}
	m.log.Info("evaluation sweep stopped")
}
