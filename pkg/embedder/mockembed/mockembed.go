// Package mockembed is a deterministic, hash-based Embedder used by tests
// and for local development without a real embedding backend. Grounded on
// becomeliminal-nim-go-sdk's memory/embedder/mock package.
package mockembed

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/mnemoforge/mnemo/pkg/embedder"
)

// Embedder generates deterministic unit vectors from a text hash, so the
// same input always embeds to the same vector within a process.
type Embedder struct {
	dim int
}

// New creates a mock embedder producing vectors of the given dimension.
func New(dim int) *Embedder {
	if dim <= 0 {
		dim = 64
	}
	return &Embedder{dim: dim}
}

func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) Embed(_ context.Context, text string, _ embedder.Purpose) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dim)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

func normalize(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(float64(sum)))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
