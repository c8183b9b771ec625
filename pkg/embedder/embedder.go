// Package embedder defines the capability for mapping text to a dense
// vector of fixed dimension, per spec.md §4.1.
package embedder

import (
	"context"

	"github.com/mnemoforge/mnemo/internal/errs"
)

// Purpose is advisory: it lets a backend route to a different endpoint for
// add/update/search without ever changing dimensionality.
type Purpose string

const (
	PurposeAdd    Purpose = "add"
	PurposeUpdate Purpose = "update"
	PurposeSearch Purpose = "search"
)

// Embedder maps text to a dense vector. Implementations must return
// errs.ErrEmbeddingUnavailable (wrapped) on transport failure; callers treat
// that as fatal to the current request, never to the process.
type Embedder interface {
	Embed(ctx context.Context, text string, purpose Purpose) ([]float32, error)
	Dimension() int
}

// WrapUnavailable is the shared helper backends use to report transport
// failures under the sentinel the contract requires.
func WrapUnavailable(op string, cause error) error {
	return errs.Wrap(op, errs.ErrEmbeddingUnavailable, cause)
}
