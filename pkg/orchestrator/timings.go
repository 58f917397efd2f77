package orchestrator

import (
	"strings"
	"sync"
	"time"
)

// historySize is how many recent turns TimingsCollector averages over.
const historySize = 100

// StageTiming is how long one pipeline stage took.
type StageTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Timings tracks latency at each stage of a turn. FirstText and FirstAudio
// are measured from the start of the turn and are only set when streaming.
type Timings struct {
	Stages     []StageTiming `json:"stages"`
	FirstText  time.Duration `json:"first_text,omitempty"`
	FirstAudio time.Duration `json:"first_audio,omitempty"`
	Total      time.Duration `json:"total"`
}

// Stage returns the duration of the named stage, or 0.
func (t Timings) Stage(name string) time.Duration {
	for _, s := range t.Stages {
		if s.Name == name {
			return s.Duration
		}
	}
	return 0
}

// FormatLatency returns a one-line summary of the stage latencies.
func (t Timings) FormatLatency() string {
	parts := make([]string, 0, len(t.Stages)+1)
	for _, s := range t.Stages {
		parts = append(parts, formatDuration(s.Duration)+" "+s.Name)
	}
	parts = append(parts, formatDuration(t.Total)+" TOTAL")
	return strings.Join(parts, " | ")
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}

// stopwatch accumulates Timings for one turn.
type stopwatch struct {
	start time.Time
	t     Timings
}

func newStopwatch() *stopwatch {
	return &stopwatch{start: time.Now()}
}

func (w *stopwatch) stage(name string, d time.Duration) {
	w.t.Stages = append(w.t.Stages, StageTiming{Name: name, Duration: d})
}

func (w *stopwatch) markFirstText() {
	if w.t.FirstText == 0 {
		w.t.FirstText = time.Since(w.start)
	}
}

func (w *stopwatch) markFirstAudio() {
	if w.t.FirstAudio == 0 {
		w.t.FirstAudio = time.Since(w.start)
	}
}

func (w *stopwatch) done() Timings {
	w.t.Total = time.Since(w.start)
	return w.t
}

// TimingsCollector keeps the timings of recent turns.
// It is goroutine-safe.
type TimingsCollector struct {
	mu       sync.Mutex
	history  []Timings
	onUpdate func(Timings)
}

// NewTimingsCollector creates an empty collector.
func NewTimingsCollector() *TimingsCollector {
	return &TimingsCollector{history: make([]Timings, 0, historySize)}
}

// OnUpdate sets a callback that fires after every recorded turn.
func (c *TimingsCollector) OnUpdate(fn func(Timings)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// Record archives the timings of a finished turn.
func (c *TimingsCollector) Record(t Timings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, t)
	if len(c.history) > historySize {
		c.history = c.history[1:]
	}
	if c.onUpdate != nil {
		go c.onUpdate(t)
	}
}

// Len returns the number of turns in the history.
func (c *TimingsCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// Average returns per-stage mean latencies over recent turns. Stages keep
// the order in which they were first seen. Streaming marks are averaged
// over the turns that set them.
func (c *TimingsCollector) Average() Timings {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 {
		return Timings{}
	}

	var (
		order  []string
		sums   = map[string]time.Duration{}
		counts = map[string]int{}
		avg    Timings
		nText  int
		nAudio int
	)
	for _, h := range c.history {
		for _, s := range h.Stages {
			if _, seen := counts[s.Name]; !seen {
				order = append(order, s.Name)
			}
			sums[s.Name] += s.Duration
			counts[s.Name]++
		}
		if h.FirstText > 0 {
			avg.FirstText += h.FirstText
			nText++
		}
		if h.FirstAudio > 0 {
			avg.FirstAudio += h.FirstAudio
			nAudio++
		}
		avg.Total += h.Total
	}

	for _, name := range order {
		avg.Stages = append(avg.Stages, StageTiming{
			Name:     name,
			Duration: sums[name] / time.Duration(counts[name]),
		})
	}
	if nText > 0 {
		avg.FirstText /= time.Duration(nText)
	}
	if nAudio > 0 {
		avg.FirstAudio /= time.Duration(nAudio)
	}
	avg.Total /= time.Duration(len(c.history))
	return avg
}
