package evaluation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-sophia/internal/log"
	"github.com/teslashibe/go-sophia/pkg/emotion"
	"github.com/teslashibe/go-sophia/pkg/intent"
	"github.com/teslashibe/go-sophia/pkg/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type failingStore struct{}

func (failingStore) Upsert(context.Context, string, memory.Record) error {
	return errors.New("disk full")
}

func (failingStore) Select(context.Context, string, memory.Filter) ([]memory.Record, error) {
	return nil, errors.New("disk full")
}

func (failingStore) Close() error { return nil }

func message(query, reply string, assistantConf float64) Message {
	return Message{
		Query:            query,
		Reply:            reply,
		UserEmotion:      emotion.Score{Label: emotion.Neutral, Confidence: 0.7},
		AssistantEmotion: emotion.Score{Label: emotion.Positive, Confidence: assistantConf},
		Intent:           intent.DomainQuestion,
	}
}

func newTestMonitor(clock *fakeClock, opts ...Option) *Monitor {
	opts = append([]Option{WithClock(clock.Now), WithLogger(log.Discard())}, opts...)
	return NewMonitor(opts...)
}

func TestMonitorStatus(t *testing.T) {
	clock := newFakeClock()
	m := newTestMonitor(clock)

	m.Collect("s1", message("hi", "hello", 0.9))
	clock.Advance(30 * time.Second)
	m.Collect("s1", message("how does staking work?", "staking locks tokens", 0.9))
	m.Collect("s2", message("hi", "hello", 0.9))
	clock.Advance(30 * time.Second)

	st := m.Status()
	assert.Equal(t, 2, st.ActiveCount)
	assert.Equal(t, DefaultIdleTimeout, st.IdleTimeout)
	require.Len(t, st.Sessions, 2)

	assert.Equal(t, "s1", st.Sessions[0].SessionID)
	assert.Equal(t, 2, st.Sessions[0].TotalMessages)
	assert.Equal(t, 30*time.Second, st.Sessions[0].ConversationDuration)
	assert.Equal(t, 30*time.Second, st.Sessions[0].IdleFor)

	assert.Equal(t, "s2", st.Sessions[1].SessionID)
	assert.Equal(t, 1, st.Sessions[1].TotalMessages)
}

func TestMonitorCheckFinished(t *testing.T) {
	clock := newFakeClock()
	m := newTestMonitor(clock)
	ctx := context.Background()

	m.Collect("old", message("hi", "hello", 0.9))
	clock.Advance(2 * time.Minute)
	m.Collect("new", message("hi", "hello", 0.9))

	clock.Advance(3 * time.Minute)
	assert.Empty(t, m.CheckFinished(ctx), "idle exactly at the timeout is still active")

	clock.Advance(time.Second)
	reports := m.CheckFinished(ctx)
	require.Len(t, reports, 1)
	assert.Equal(t, "old", reports[0].SessionID)
	assert.Equal(t, 1, m.Status().ActiveCount)

	clock.Advance(2 * time.Minute)
	reports = m.CheckFinished(ctx)
	require.Len(t, reports, 1)
	assert.Equal(t, "new", reports[0].SessionID)
	assert.Zero(t, m.Status().ActiveCount)
}

func TestMonitorIdleTimeoutOption(t *testing.T) {
	clock := newFakeClock()
	m := newTestMonitor(clock, WithIdleTimeout(time.Minute))

	m.Collect("s1", message("hi", "hello", 0.9))
	clock.Advance(61 * time.Second)

	assert.Len(t, m.CheckFinished(context.Background()), 1)
}

func TestMonitorForce(t *testing.T) {
	clock := newFakeClock()
	m := newTestMonitor(clock)
	ctx := context.Background()

	r, ok := m.Force(ctx, "missing")
	assert.False(t, ok)
	assert.Nil(t, r)

	ref := ReferenceSet()[2]
	m.Collect("s1", message(ref.Query, ref.ExpectedAnswer, 0.9))
	clock.Advance(90 * time.Second)
	m.Collect("s1", message(ref.Query, ref.ExpectedAnswer, 0.7))

	r, ok = m.Force(ctx, "s1")
	require.True(t, ok)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "s1", r.SessionID)
	assert.Equal(t, 2, r.MessageCount)
	assert.Equal(t, 90*time.Second, r.Duration)
	assert.Len(t, r.Samples, 4)

	require.NotNil(t, r.Quality)
	assert.InDelta(t, 0.7, r.Quality.Faithfulness, 1e-9)
	assert.InDelta(t, 0.45, r.Quality.Relevance, 1e-9)
	assert.InDelta(t, 1, r.Quality.Correctness, 1e-9)
	assert.InDelta(t, (0.7+0.45+1)/3, r.Quality.Average, 1e-9)

	assert.False(t, r.DriftAlert)
	assert.InDelta(t, 0.8, r.CurrentConfidence, 1e-9)
	assert.Equal(t, BaselineConfidence, r.BaselineConfidence)

	_, ok = m.Force(ctx, "s1")
	assert.False(t, ok, "forced conversation leaves the registry")
}

func TestMonitorDriftAlert(t *testing.T) {
	clock := newFakeClock()
	m := newTestMonitor(clock)

	m.Collect("s1", message("hi", "hello", 0.4))
	r, ok := m.Force(context.Background(), "s1")

	require.True(t, ok)
	assert.True(t, r.DriftAlert)
	assert.InDelta(t, 0.4, r.CurrentConfidence, 1e-9)
}

func TestMonitorEvaluateWithoutMessages(t *testing.T) {
	m := newTestMonitor(newFakeClock())

	r := m.Evaluate(context.Background(), "s1", nil)

	assert.Nil(t, r.Quality)
	assert.Zero(t, r.MessageCount)
	assert.False(t, r.DriftAlert)
	assert.Equal(t, BaselineConfidence, r.CurrentConfidence)
	assert.Nil(t, r.Summary().QualityAverage)
}

func TestMonitorEvaluateDuration(t *testing.T) {
	m := newTestMonitor(newFakeClock())
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	a := message("hi", "hello", 0.9)
	a.Timestamp = t0
	b := message("bye", "goodbye", 0.9)
	b.Timestamp = t0.Add(3 * time.Minute)

	r := m.Evaluate(context.Background(), "s1", []Message{a, b})
	assert.Equal(t, 3*time.Minute, r.Duration)
	assert.Equal(t, 0, m.Status().ActiveCount)
}

func TestReportSummary(t *testing.T) {
	r := &Report{
		SessionID:          "s1",
		Quality:            &Metrics{Average: 0.72},
		Samples:            make([]EmotionSample, 4),
		MessageCount:       2,
		Duration:           90 * time.Second,
		BaselineConfidence: 0.81,
		CurrentConfidence:  0.9,
	}

	s := r.Summary()
	assert.Equal(t, 2, s.TotalMessages)
	assert.Equal(t, 1.5, s.DurationMinutes)
	require.NotNil(t, s.QualityAverage)
	assert.Equal(t, 0.72, *s.QualityAverage)
	assert.Equal(t, 4, s.EmotionSamples)
	assert.Equal(t, "0.81 -> 0.90", s.ConfidenceChange)
}

func TestMonitorListeners(t *testing.T) {
	clock := newFakeClock()
	var fromOption, fromSubscribe []*Report
	m := newTestMonitor(clock, WithListener(ListenerFunc(func(r *Report) {
		fromOption = append(fromOption, r)
	})))
	m.Subscribe(ListenerFunc(func(r *Report) {
		fromSubscribe = append(fromSubscribe, r)
	}))

	m.Collect("s1", message("hi", "hello", 0.9))
	r, _ := m.Force(context.Background(), "s1")

	require.Len(t, fromOption, 1)
	require.Len(t, fromSubscribe, 1)
	assert.Same(t, r, fromOption[0])
	assert.Same(t, r, fromSubscribe[0])
}

func TestMonitorPersistsReports(t *testing.T) {
	store, err := memory.NewSQLiteStore(filepath.Join(t.TempDir(), "sophia.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := newFakeClock()
	m := newTestMonitor(clock, WithStore(store))
	ctx := context.Background()

	ref := ReferenceSet()[2]
	m.Collect("s1", message(ref.Query, ref.ExpectedAnswer, 0.9))
	r, ok := m.Force(ctx, "s1")
	require.True(t, ok)

	recs, err := store.Select(ctx, memory.TableEvaluationReports, memory.Filter{
		Equals: map[string]any{"session_id": "s1"},
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, r.ID, recs[0].String("id"))
	assert.InDelta(t, r.Quality.Average, recs[0].Float("quality_average"), 1e-9)
	assert.Equal(t, float64(2), recs[0].Float("emotion_samples"))
}

func TestMonitorSwallowsStoreFailure(t *testing.T) {
	clock := newFakeClock()
	m := newTestMonitor(clock, WithStore(failingStore{}))

	m.Collect("s1", message("hi", "hello", 0.9))
	r, ok := m.Force(context.Background(), "s1")

	require.True(t, ok)
	assert.Equal(t, "s1", r.SessionID)
}

func TestMonitorCollectConcurrent(t *testing.T) {
	m := newTestMonitor(newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				m.Collect("s1", message("hi", "hello", 0.9))
				m.Status()
			}
		}()
	}
	wg.Wait()

	st := m.Status()
	require.Len(t, st.Sessions, 1)
	assert.Equal(t, 200, st.Sessions[0].TotalMessages)
}

func TestMonitorPeriodicSweep(t *testing.T) {
	reports := make(chan *Report, 1)
	m := NewMonitor(
		WithLogger(log.Discard()),
		WithSchedule("@every 1s"),
		WithIdleTimeout(time.Millisecond),
		WithListener(ListenerFunc(func(r *Report) { reports <- r })),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	assert.ErrorIs(t, m.Start(ctx), ErrAlreadyStarted)

	m.Collect("s1", message("hi", "hello", 0.9))

	select {
	case r := <-reports:
		assert.Equal(t, "s1", r.SessionID)
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not evaluate the idle conversation")
	}
}

func TestMonitorStartBadSchedule(t *testing.T) {
	m := NewMonitor(WithLogger(log.Discard()), WithSchedule("not a schedule"))
	assert.Error(t, m.Start(context.Background()))
	m.Stop()
}

func TestMonitorStopIdempotent(t *testing.T) {
	m := NewMonitor(WithLogger(log.Discard()))
	require.NoError(t, m.Start(context.Background()))
	m.Stop()
	m.Stop()
	require.NoError(t, m.Start(context.Background()), "monitor can restart after Stop")
	m.Stop()
}

func TestMonitorMessagesReturnsCopy(t *testing.T) {
	m := newTestMonitor(newFakeClock())
	assert.Nil(t, m.Messages("s1"))

	m.Collect("s1", message("What is DeFi?", "Decentralized finance.", 0.8))
	got := m.Messages("s1")
	require.Len(t, got, 1)

	got[0].Reply = "changed"
	assert.Equal(t, "Decentralized finance.", m.Messages("s1")[0].Reply)
}
