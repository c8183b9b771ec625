// Package shortterm implements the per-user bounded short-term memory
// buffer of spec.md §4.5: a strict FIFO capped at M entries, silently
// evicting the oldest entry once full. Grounded on the teacher's
// container/list usage pattern for ordered collections (pkg/memory/memory.go
// keeps ordered layers in slices); a ristretto-style LRU/TTL cache
// (available via becomeliminal's go.mod) was considered and rejected since
// ristretto evicts by a cost/recency heuristic, not deterministic
// insertion-order FIFO, which the spec's STM-recency scenario requires.
package shortterm

import (
	"container/list"
	"sync"

	"github.com/mnemoforge/mnemo/pkg/memtypes"
)

// Buffer holds every user's short-term memory ring, each capped at maxItems.
type Buffer struct {
	mu       sync.Mutex
	maxItems int
	perUser  map[string]*list.List
}

// New constructs a Buffer; maxItems <= 0 falls back to 32, spec.md's default.
func New(maxItems int) *Buffer {
	if maxItems <= 0 {
		maxItems = 32
	}
	return &Buffer{maxItems: maxItems, perUser: make(map[string]*list.List)}
}

// Append adds entry to its user's ring, evicting the oldest entry if the
// ring is already at capacity.
func (b *Buffer) Append(entry memtypes.ShortTermEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.perUser[entry.UserID]
	if !ok {
		l = list.New()
		b.perUser[entry.UserID] = l
	}
	l.PushBack(entry)
	for l.Len() > b.maxItems {
		l.Remove(l.Front())
	}
}

// Recent returns up to n of a user's most recently appended entries, oldest
// first (matching the order the teacher's own layered-memory lists use).
func (b *Buffer) Recent(userID string, n int) []memtypes.ShortTermEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.perUser[userID]
	if !ok || l.Len() == 0 {
		return nil
	}
	if n <= 0 || n > l.Len() {
		n = l.Len()
	}

	out := make([]memtypes.ShortTermEntry, n)
	e := l.Back()
	for i := n - 1; i >= 0 && e != nil; i-- {
		out[i] = e.Value.(memtypes.ShortTermEntry)
		e = e.Prev()
	}
	return out
}

// Len reports how many entries a user's ring currently holds.
func (b *Buffer) Len(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.perUser[userID]
	if !ok {
		return 0
	}
	return l.Len()
}

// Reset drops every user's buffered entries.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.perUser = make(map[string]*list.List)
}
