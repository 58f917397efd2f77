package knowledge

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/teslashibe/go-sophia/pkg/inference"
)

// Embedder turns texts into vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// ProviderEmbedder embeds through an inference provider (usually a Chain).
type ProviderEmbedder struct {
	provider inference.Provider
	model    string
}

// NewProviderEmbedder wraps provider. model may be empty to use the
// provider's configured embedding model.
func NewProviderEmbedder(provider inference.Provider, model string) *ProviderEmbedder {
	return &ProviderEmbedder{provider: provider, model: model}
}

// Embed implements Embedder.
func (e *ProviderEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := e.provider.Embed(ctx, &inference.EmbedRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("knowledge: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// HashEmbedder is a deterministic local embedder using hashed character
// trigrams of each word. It needs no network and is used when no
// embedding provider is reachable.
type HashEmbedder struct {
	Dim int
}

// DefaultHashDim is the vector size used when Dim is zero.
const DefaultHashDim = 512

// Embed implements Embedder.
func (h HashEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	dim := h.Dim
	if dim <= 0 {
		dim = DefaultHashDim
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t, dim)
	}
	return out, nil
}

func (h HashEmbedder) vector(text string, dim int) []float64 {
	v := make([]float64, dim)
	for _, word := range tokenize(text) {
		padded := "^" + word + "$"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			v[bucket(string(runes[i:i+3]), dim)]++
		}
		// whole-word feature keeps short words distinguishable
		v[bucket(word, dim)] += 2
	}
	normalize(v)
	return v
}

func bucket(s string, dim int) int {
	f := fnv.New32a()
	f.Write([]byte(s))
	return int(f.Sum32() % uint32(dim))
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "what": true,
	"how": true, "do": true, "does": true, "i": true, "of": true, "to": true,
	"in": true, "vs": true, "and": true, "with": true, "work": true,
}

func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := words[:0]
	for _, w := range words {
		if !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

func normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	n := math.Sqrt(sum)
	for i := range v {
		v[i] /= n
	}
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
