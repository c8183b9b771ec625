// Package memtypes defines the data model shared by every mnemo component:
// the long-term MemoryRecord, the in-process ShortTermEntry, the audit
// HistoryEvent, and the transient Fact/ReconcilerAction shapes produced
// mid-pipeline.
package memtypes

import "time"

// MemoryType classifies a MemoryRecord's origin.
type MemoryType string

const (
	MemoryTypeSemantic   MemoryType = "semantic"
	MemoryTypeProcedural MemoryType = "procedural"
)

// MemoryRecord is the long-term memory unit stored in the VectorStore.
type MemoryRecord struct {
	ID         string
	Text       string
	Embedding  []float32
	Hash       string
	UserID     string
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	MemoryType MemoryType
	Metadata   map[string]any
}

// ShortTermEntry is the short-term memory unit, held only in process memory.
type ShortTermEntry struct {
	ID        string
	Text      string
	Embedding []float32
	CreatedAt time.Time
	UserID    string
}

// HistoryOp enumerates the audit-log operation kinds.
type HistoryOp string

const (
	HistoryAdd    HistoryOp = "ADD"
	HistoryUpdate HistoryOp = "UPDATE"
	HistoryDelete HistoryOp = "DELETE"
)

// HistoryEvent is one append-only audit row.
type HistoryEvent struct {
	EventID   string
	MemoryID  string
	PrevText  *string
	NewText   *string
	Op        HistoryOp
	CreatedAt time.Time
	UpdatedAt *time.Time
	IsDeleted bool
}

// Fact is a single declarative statement produced by the FactExtractor,
// scoped to a single ingest call.
type Fact struct {
	Text string
}

// ReconcilerOp enumerates the reconciliation decisions the oracle may emit.
type ReconcilerOp string

const (
	ReconcilerAdd    ReconcilerOp = "ADD"
	ReconcilerUpdate ReconcilerOp = "UPDATE"
	ReconcilerDelete ReconcilerOp = "DELETE"
	ReconcilerNone   ReconcilerOp = "NONE"
)

// ReconcilerAction is one decision the Reconciler applies or surfaces.
type ReconcilerAction struct {
	ID      string
	Text    string
	Op      ReconcilerOp
	OldText *string
}

// MemoryItem is the wire/API shape returned by MemoryEngine.Search and the
// RAG pipeline's retrieval step: a ranked blend of STM and LTM hits.
type MemoryItem struct {
	ID        string
	Memory    string
	Hash      string
	CreatedAt time.Time
	UpdatedAt *time.Time
	Score     float64
	// Source is "stm" or "ltm"; it is expansion-only bookkeeping for
	// observability and tests, never used to decide ranking.
	Source string
}

// AddResult is one entry of MemoryEngine.Add's result list.
type AddResult struct {
	ID             string
	Memory         string
	Event          ReconcilerOp
	PreviousMemory *string
}
