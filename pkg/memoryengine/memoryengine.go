// Package memoryengine implements the public contract of spec.md §4.8: the
// orchestrator wiring Embedder, FactExtractor, Reconciler, VectorStore,
// HistoryLog, and ShortTermBuffer into add/search/reset/get_all/delete_all
// and procedural-memory ingestion. Grounded on the shape of the teacher's
// MemoryManager in pkg/memory/memory.go (one façade over a layered memory
// hierarchy) but replacing its RRF-fused multi-channel recall with the
// blended STM-synthetic-score/LTM-real-score merge spec.md §4.8 requires.
package memoryengine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mnemoforge/mnemo/internal/errs"
	"github.com/mnemoforge/mnemo/internal/logging"
	"github.com/mnemoforge/mnemo/pkg/embedder"
	"github.com/mnemoforge/mnemo/pkg/factextractor"
	"github.com/mnemoforge/mnemo/pkg/generator"
	"github.com/mnemoforge/mnemo/pkg/historylog"
	"github.com/mnemoforge/mnemo/pkg/memtypes"
	"github.com/mnemoforge/mnemo/pkg/procedural"
	"github.com/mnemoforge/mnemo/pkg/reconciler"
	"github.com/mnemoforge/mnemo/pkg/shortterm"
	"github.com/mnemoforge/mnemo/pkg/vectorstore"
)

const (
	stmRecentEntries  = 5
	stmSyntheticScore = 0.99
	ltmCandidateCount = 10
	ltmTopN           = 3
)

// Engine is the orchestrator described by spec.md §4.8.
type Engine struct {
	embed      embedder.Embedder
	store      *vectorstore.Store
	hist       *historylog.Log
	stm        *shortterm.Buffer
	extractor  *factextractor.Extractor
	reconciler *reconciler.Reconciler
	summarizer *procedural.Summarizer
	log        logging.Logger
}

// New constructs an Engine from its already-opened dependencies.
func New(embed embedder.Embedder, gen generator.Generator, store *vectorstore.Store, hist *historylog.Log, stm *shortterm.Buffer, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		embed:      embed,
		store:      store,
		hist:       hist,
		stm:        stm,
		extractor:  factextractor.New(gen, log),
		reconciler: reconciler.New(embed, gen, store, hist, log),
		summarizer: procedural.New(gen, log),
		log:        log,
	}
}

// Add embeds text and appends it to STM unconditionally; if infer is false
// it is inserted verbatim as one LTM record, otherwise it is run through
// fact-extraction and reconciliation.
func (e *Engine) Add(ctx context.Context, text, userID string, infer bool) ([]memtypes.AddResult, error) {
	if userID == "" {
		return nil, errs.Wrap("add", errs.ErrInputInvalid, fmt.Errorf("user_id is required"))
	}
	if text == "" {
		return nil, errs.Wrap("add", errs.ErrInputInvalid, fmt.Errorf("text must not be empty"))
	}

	vec, err := e.embed.Embed(ctx, text, embedder.PurposeAdd)
	if err != nil {
		return nil, embedder.WrapUnavailable("add", err)
	}
	e.stm.Append(memtypes.ShortTermEntry{
		ID: uuid.NewString(), Text: text, Embedding: vec, CreatedAt: time.Now().UTC(), UserID: userID,
	})

	if !infer {
		return e.addVerbatim(ctx, text, vec, userID)
	}

	facts := e.extractor.Extract(ctx, text)
	if len(facts) == 0 {
		return []memtypes.AddResult{}, nil
	}
	return e.reconciler.Reconcile(ctx, facts, userID)
}

func (e *Engine) addVerbatim(ctx context.Context, text string, vec []float32, userID string) ([]memtypes.AddResult, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	payload := map[string]any{
		"data": text, "user_id": userID, "created_at": now,
		"memory_type": string(memtypes.MemoryTypeSemantic),
	}
	if err := e.store.Insert([]string{id}, [][]float32{vec}, []map[string]any{payload}); err != nil {
		return nil, err
	}
	if err := e.hist.Record(ctx, memtypes.HistoryEvent{
		EventID: uuid.NewString(), MemoryID: id, NewText: &text, Op: memtypes.HistoryAdd, CreatedAt: now,
	}); err != nil {
		e.log.Warn("memoryengine: history write failed", "memory_id", id, "error", err)
	}
	return []memtypes.AddResult{{ID: id, Memory: text, Event: memtypes.ReconcilerAdd}}, nil
}

// Search blends recent STM entries (tagged with a synthetic score so
// recency dominates the immediate turn) with LTM hits above ltmThreshold,
// per spec.md §4.8.
func (e *Engine) Search(ctx context.Context, query, userID string, limit int, ltmThreshold float64) ([]memtypes.MemoryItem, error) {
	if userID == "" {
		return nil, errs.Wrap("search", errs.ErrInputInvalid, fmt.Errorf("user_id is required"))
	}
	if limit <= 0 {
		return nil, errs.Wrap("search", errs.ErrInputInvalid, fmt.Errorf("limit must be > 0"))
	}

	vec, err := e.embed.Embed(ctx, query, embedder.PurposeSearch)
	if err != nil {
		return nil, embedder.WrapUnavailable("search", err)
	}

	hits, err := e.store.Search(vec, ltmCandidateCount, vectorstore.Filters{
		Equals:    map[string]string{"user_id": userID},
		NotEquals: map[string]string{"memory_type": "procedural"},
	})
	if err != nil {
		return nil, err
	}

	items := make([]memtypes.MemoryItem, 0, limit)
	ltmKept := 0
	for _, h := range hits {
		if ltmKept >= ltmTopN {
			break
		}
		if h.Score < ltmThreshold {
			continue
		}
		items = append(items, payloadToItem(h.ID, h.Score, "ltm", h.Payload))
		ltmKept++
	}

	for _, entry := range e.stm.Recent(userID, stmRecentEntries) {
		items = append(items, memtypes.MemoryItem{
			ID: entry.ID, Memory: entry.Text, CreatedAt: entry.CreatedAt,
			Score: stmSyntheticScore, Source: "stm",
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func payloadToItem(id string, score float64, source string, payload map[string]any) memtypes.MemoryItem {
	item := memtypes.MemoryItem{ID: id, Score: score, Source: source}
	if v, ok := payload["data"].(string); ok {
		item.Memory = v
	}
	if v, ok := payload["hash"].(string); ok {
		item.Hash = v
	}
	if v, ok := payload["created_at"].(time.Time); ok {
		item.CreatedAt = v
	}
	if v, ok := payload["updated_at"].(time.Time); ok {
		item.UpdatedAt = &v
	}
	return item
}

// Reset drops all LTM records and the STM buffer; HistoryLog is retained.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.store.Reset(); err != nil {
		return err
	}
	e.stm.Reset()
	return nil
}

// AddProceduralMemory summarises a dialogue window and stores it as one
// procedural MemoryRecord, bypassing reconciliation entirely.
func (e *Engine) AddProceduralMemory(ctx context.Context, messages []generator.Message, userID string, prompt string) (memtypes.AddResult, error) {
	if userID == "" {
		return memtypes.AddResult{}, errs.Wrap("add_procedural_memory", errs.ErrInputInvalid, fmt.Errorf("user_id is required"))
	}

	summary, err := e.summarizer.Summarize(ctx, messages, prompt)
	if err != nil {
		return memtypes.AddResult{}, err
	}

	vec, err := e.embed.Embed(ctx, summary, embedder.PurposeAdd)
	if err != nil {
		return memtypes.AddResult{}, embedder.WrapUnavailable("add_procedural_memory", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	payload := map[string]any{
		"data": summary, "user_id": userID, "created_at": now,
		"memory_type":   string(memtypes.MemoryTypeProcedural),
		"dialogue_span": len(messages),
	}
	if err := e.store.Insert([]string{id}, [][]float32{vec}, []map[string]any{payload}); err != nil {
		return memtypes.AddResult{}, err
	}
	if err := e.hist.Record(ctx, memtypes.HistoryEvent{
		EventID: uuid.NewString(), MemoryID: id, NewText: &summary, Op: memtypes.HistoryAdd, CreatedAt: now,
	}); err != nil {
		e.log.Warn("memoryengine: history write failed", "memory_id", id, "error", err)
	}
	return memtypes.AddResult{ID: id, Memory: summary, Event: memtypes.ReconcilerAdd}, nil
}

// GetAll enumerates every record belonging to userID.
func (e *Engine) GetAll(ctx context.Context, userID string) ([]memtypes.MemoryItem, error) {
	if userID == "" {
		return nil, errs.Wrap("get_all", errs.ErrInputInvalid, fmt.Errorf("user_id is required"))
	}
	rows, err := e.store.List(vectorstore.Filters{Equals: map[string]string{"user_id": userID}}, 0)
	if err != nil {
		return nil, err
	}
	items := make([]memtypes.MemoryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, payloadToItem(row.ID, 0, "ltm", row.Payload))
	}
	return items, nil
}

// DeleteAll removes every record belonging to userID, logging one DELETE
// event per removed record.
func (e *Engine) DeleteAll(ctx context.Context, userID string) error {
	if userID == "" {
		return errs.Wrap("delete_all", errs.ErrInputInvalid, fmt.Errorf("user_id is required"))
	}
	rows, err := e.store.List(vectorstore.Filters{Equals: map[string]string{"user_id": userID}}, 0)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := e.store.Delete(row.ID); err != nil {
			return err
		}
		var prevText *string
		if v, ok := row.Payload["data"].(string); ok {
			prevText = &v
		}
		if err := e.hist.Record(ctx, memtypes.HistoryEvent{
			EventID: uuid.NewString(), MemoryID: row.ID, PrevText: prevText,
			Op: memtypes.HistoryDelete, CreatedAt: time.Now().UTC(), IsDeleted: true,
		}); err != nil {
			e.log.Warn("memoryengine: history write failed", "memory_id", row.ID, "error", err)
		}
	}
	return nil
}
