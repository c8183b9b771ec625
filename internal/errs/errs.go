// Package errs defines the sentinel error kinds shared across mnemo's
// components and the StoreError-shaped wrapper used to attach operation
// context to them.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, per the error handling design.
var (
	// ErrInputInvalid marks a caller error: missing user_id, empty text,
	// limit <= 0. Never retried.
	ErrInputInvalid = errors.New("input invalid")

	// ErrEmbeddingUnavailable marks a transport failure from the Embedder.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrGeneratorUnavailable marks a transport failure from the Generator.
	ErrGeneratorUnavailable = errors.New("generator unavailable")

	// ErrOracleParseFailure marks unparseable JSON from a Generator call
	// expected to return structured output (fact extraction, reconciliation).
	ErrOracleParseFailure = errors.New("oracle returned unparseable output")

	// ErrStoreCorrupt marks an unreadable index or payload file at startup.
	// Never surfaced past the store's constructor log line.
	ErrStoreCorrupt = errors.New("store corrupt")

	// ErrStoreIO marks a failed mutation write (flush to disk).
	ErrStoreIO = errors.New("store io error")

	// ErrCancelled marks cooperative cancellation of an in-flight request.
	ErrCancelled = errors.New("cancelled")

	// ErrNotFound marks a lookup that found no matching row.
	ErrNotFound = errors.New("not found")
)

// OpError wraps an error with the operation name that produced it, mirroring
// the teacher's StoreError{Op, Err} shape.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mnemo: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("mnemo: %s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

func (e *OpError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// Wrap attaches operation context and a sentinel kind to cause. A nil cause
// still produces an error carrying kind, since callers use Wrap to originate
// sentinel errors as well as to annotate underlying ones.
func Wrap(op string, kind error, cause error) error {
	return &OpError{Op: op, Kind: kind, Err: cause}
}
