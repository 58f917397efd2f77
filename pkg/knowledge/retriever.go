// Package knowledge retrieves DeFi FAQ entries similar to a user question.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/teslashibe/go-sophia/internal/log"
)

const (
	// DefaultThreshold is the minimum cosine similarity for a match.
	DefaultThreshold = 0.7

	// DefaultTopK is the number of matches used for prompt context.
	DefaultTopK = 2
)

// Match is an item that cleared the similarity threshold.
type Match struct {
	Item       Item    `json:"item"`
	Similarity float64 `json:"similarity"`
}

// Config holds retriever configuration.
type Config struct {
	Threshold float64
	TopK      int
	Fallback  Embedder
	Logger    *slog.Logger
}

// Option configures a Retriever.
type Option func(*Config)

// WithThreshold sets the similarity threshold.
func WithThreshold(t float64) Option {
	return func(c *Config) { c.Threshold = t }
}

// WithTopK sets the default number of matches.
func WithTopK(k int) Option {
	return func(c *Config) { c.TopK = k }
}

// WithFallback sets the embedder used when the primary fails at load time.
func WithFallback(e Embedder) Option {
	return func(c *Config) { c.Fallback = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns retriever defaults.
func DefaultConfig() *Config {
	return &Config{
		Threshold: DefaultThreshold,
		TopK:      DefaultTopK,
		Fallback:  HashEmbedder{},
		Logger:    slog.Default(),
	}
}

// Retriever answers similarity queries over a fixed item set.
// Items are embedded once at construction and never change.
type Retriever struct {
	items    []Item
	embedder Embedder
	cfg      *Config
	logger   *slog.Logger
}

// NewRetriever embeds items with embedder. If that fails, the whole index
// is built with the fallback embedder instead, and queries use it too, so
// both sides share one vector space. An error is returned only when the
// fallback also fails.
func NewRetriever(ctx context.Context, embedder Embedder, items []Item, opts ...Option) (*Retriever, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	logger := log.Component(cfg.Logger, "knowledge.retriever")

	r := &Retriever{cfg: cfg, logger: logger}

	questions := make([]string, len(items))
	for i, it := range items {
		questions[i] = it.Question
	}

	vecs, err := embedder.Embed(ctx, questions)
	if err != nil && cfg.Fallback != nil {
		logger.Warn("embedding provider unavailable, using local embedder", "error", err)
		embedder = cfg.Fallback
		vecs, err = embedder.Embed(ctx, questions)
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed items: %w", err)
	}

	r.embedder = embedder
	r.items = make([]Item, len(items))
	for i, it := range items {
		it.Embedding = vecs[i]
		r.items[i] = it
	}

	logger.Info("knowledge base loaded", "items", len(r.items))
	return r, nil
}

// Retrieve returns up to topK items with similarity at or above the
// threshold, most similar first. topK <= 0 uses the configured default.
// An embedding failure yields no matches.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) []Match {
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	if len(r.items) == 0 || strings.TrimSpace(query) == "" {
		return nil
	}

	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		r.logger.Warn("query embedding failed", "error", err)
		return nil
	}

	var matches []Match
	for _, it := range r.items {
		sim := Cosine(vecs[0], it.Embedding)
		if sim >= r.cfg.Threshold {
			matches = append(matches, Match{Item: it, Similarity: sim})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// Context retrieves with the default topK and formats the matches.
func (r *Retriever) Context(ctx context.Context, query string) (string, []Match) {
	matches := r.Retrieve(ctx, query, 0)
	return FormatContext(matches), matches
}

// Len returns the number of indexed items.
func (r *Retriever) Len() int {
	return len(r.items)
}

// FormatContext renders matches as numbered FAQ blocks for a prompt.
func FormatContext(matches []Match) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = fmt.Sprintf("FAQ %d (similarity: %.2f):\nQ: %s\nA: %s",
			i+1, m.Similarity, m.Item.Question, m.Item.Answer)
	}
	return strings.Join(parts, "\n\n")
}
