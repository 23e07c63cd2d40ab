package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync/atomic"
)

// Embedder is a test double for embeddings.Provider. Vectors are derived
// from an FNV hash of the text, so equal texts embed identically.
type Embedder struct {
	Dim int

	EmbedQueryFunc     func(ctx context.Context, text string) ([]float32, error)
	EmbedDocumentsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	calls atomic.Int64
}

// NewEmbedder returns an Embedder producing dim-dimensional vectors.
func NewEmbedder(dim int) *Embedder {
	return &Embedder{Dim: dim}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.EmbedQueryFunc != nil {
		return e.EmbedQueryFunc(ctx, text)
	}
	return Vector(text, e.Dimension()), nil
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.EmbedDocumentsFunc != nil {
		return e.EmbedDocumentsFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t, e.Dimension())
	}
	return out, nil
}

// Dimension defaults to 384.
func (e *Embedder) Dimension() int {
	if e.Dim <= 0 {
		return 384
	}
	return e.Dim
}

func (e *Embedder) Close() error { return nil }

// CallCount returns the number of embed calls.
func (e *Embedder) CallCount() int {
	return int(e.calls.Load())
}

// Vector returns a unit-length pseudo-random vector seeded by text.
func Vector(text string, dim int) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	v := make([]float32, dim)
	var norm float64
	for i := range v {
		seed = seed*1664525 + 1013904223
		v[i] = float32(seed%1000)/1000.0 - 0.5
		norm += float64(v[i]) * float64(v[i])
	}
	if norm == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= inv
	}
	return v
}
