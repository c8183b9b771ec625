// Package reconciler implements the ADD/UPDATE/DELETE/NONE fact
// reconciliation state machine of spec.md §4.7: given newly extracted
// facts, it gathers nearby existing memories, asks an oracle how to merge
// them, and applies the resulting actions to the VectorStore and
// HistoryLog. Grounded on original_source/my_mem/memory/main.py's
// `_add_to_vector_store` update phase (`get_update_memory_messages`,
// per-fact k=5 search accumulated into an `existing` map, degenerate
// one-ADD-per-fact fallback on parse failure).
package reconciler

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mnemoforge/mnemo/internal/errs"
	"github.com/mnemoforge/mnemo/internal/logging"
	"github.com/mnemoforge/mnemo/pkg/embedder"
	"github.com/mnemoforge/mnemo/pkg/generator"
	"github.com/mnemoforge/mnemo/pkg/historylog"
	"github.com/mnemoforge/mnemo/pkg/memtypes"
	"github.com/mnemoforge/mnemo/pkg/vectorstore"
)

const candidatesPerFact = 5

const systemPrompt = `You reconcile a user's existing memories with newly observed facts.
You are given EXISTING MEMORIES (id and text) and NEW FACTS. For each fact,
decide exactly one action:
  ADD    - the fact is new information, unrelated to any existing memory.
  UPDATE - the fact refines or supersedes an existing memory; carry its id.
  DELETE - the fact contradicts an existing memory, which should be removed; carry its id.
  NONE   - the fact is already captured verbatim; no change needed.
Return ONLY a JSON object {"memory": [{"id": "...", "text": "...", "event": "ADD|UPDATE|DELETE|NONE"}, ...]}.
For ADD, omit "id" or leave it empty. For UPDATE/DELETE, "id" must be one of the existing memory ids given to you.
One entry per fact, in any order.`

// Reconciler applies the oracle-driven reconciliation procedure.
type Reconciler struct {
	embed embedder.Embedder
	gen   generator.Generator
	store *vectorstore.Store
	hist  *historylog.Log
	log   logging.Logger
}

// New constructs a Reconciler.
func New(embed embedder.Embedder, gen generator.Generator, store *vectorstore.Store, hist *historylog.Log, log logging.Logger) *Reconciler {
	if log == nil {
		log = logging.Nop()
	}
	return &Reconciler{embed: embed, gen: gen, store: store, hist: hist, log: log}
}

type actionPayload struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Event string `json:"event"`
}

type memoryPayload struct {
	Memory []actionPayload `json:"memory"`
}

// Reconcile runs the full ADD/UPDATE/DELETE/NONE procedure for one ingest
// call's extracted facts, scoped to userID.
func (r *Reconciler) Reconcile(ctx context.Context, facts []string, userID string) ([]memtypes.AddResult, error) {
	if len(facts) == 0 {
		return nil, nil
	}

	candidates, err := r.gatherCandidates(ctx, facts, userID)
	if err != nil {
		return nil, err
	}

	actions, parseErr := r.reconcileActions(ctx, candidates, facts)
	if parseErr != nil {
		r.log.Warn("reconciler: oracle output unparseable, falling back to one ADD per fact", "error", parseErr)
		actions = degenerateAdds(facts)
	}

	return r.apply(ctx, actions, candidates, userID)
}

// gatherCandidates embeds every fact and fans out a k=5 VectorStore search
// per fact, filtered to the user and excluding procedural memories, then
// accumulates the union of returned {id: text} pairs.
func (r *Reconciler) gatherCandidates(ctx context.Context, facts []string, userID string) (map[string]string, error) {
	type found struct {
		id   string
		text string
	}
	results := make([][]found, len(facts))

	g, gctx := errgroup.WithContext(ctx)
	for i, fact := range facts {
		i, fact := i, fact
		g.Go(func() error {
			vec, err := r.embed.Embed(gctx, fact, embedder.PurposeSearch)
			if err != nil {
				return embedder.WrapUnavailable("reconcile_candidates", err)
			}
			hits, err := r.store.Search(vec, candidatesPerFact, vectorstore.Filters{
				Equals:    map[string]string{"user_id": userID},
				NotEquals: map[string]string{"memory_type": string(memtypes.MemoryTypeProcedural)},
			})
			if err != nil {
				return err
			}
			fs := make([]found, 0, len(hits))
			for _, h := range hits {
				text, _ := h.Payload["data"].(string)
				fs = append(fs, found{id: h.ID, text: text})
			}
			results[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make(map[string]string)
	for _, fs := range results {
		for _, f := range fs {
			candidates[f.id] = f.text
		}
	}
	return candidates, nil
}

func (r *Reconciler) reconcileActions(ctx context.Context, candidates map[string]string, facts []string) ([]memtypes.ReconcilerAction, error) {
	prompt := buildReconciliationPrompt(candidates, facts)
	messages := []generator.Message{
		{Role: generator.RoleSystem, Content: systemPrompt},
		{Role: generator.RoleUser, Content: prompt},
	}
	out, err := r.gen.Generate(ctx, messages, generator.Options{ResponseFormat: generator.ResponseJSONObject})
	if err != nil {
		return nil, generator.WrapUnavailable("reconcile", err)
	}

	var payload memoryPayload
	if err := json.Unmarshal([]byte(generator.StripCodeFences(out)), &payload); err != nil {
		return nil, errs.Wrap("reconcile", errs.ErrOracleParseFailure, err)
	}

	actions := make([]memtypes.ReconcilerAction, 0, len(payload.Memory))
	for _, a := range payload.Memory {
		op := memtypes.ReconcilerOp(a.Event)
		switch op {
		case memtypes.ReconcilerAdd, memtypes.ReconcilerUpdate, memtypes.ReconcilerDelete, memtypes.ReconcilerNone:
		default:
			op = memtypes.ReconcilerNone
		}
		actions = append(actions, memtypes.ReconcilerAction{ID: a.ID, Text: a.Text, Op: op})
	}
	return actions, nil
}

func buildReconciliationPrompt(candidates map[string]string, facts []string) string {
	s := "EXISTING MEMORIES:\n"
	if len(candidates) == 0 {
		s += "(none)\n"
	}
	for id, text := range candidates {
		s += fmt.Sprintf("- id=%s text=%q\n", id, text)
	}
	s += "\nNEW FACTS:\n"
	for _, f := range facts {
		s += fmt.Sprintf("- %s\n", f)
	}
	return s
}

func degenerateAdds(facts []string) []memtypes.ReconcilerAction {
	actions := make([]memtypes.ReconcilerAction, len(facts))
	for i, f := range facts {
		actions[i] = memtypes.ReconcilerAction{Op: memtypes.ReconcilerAdd, Text: f}
	}
	return actions
}

// apply executes each action against the VectorStore and HistoryLog,
// dropping UPDATE/DELETE actions whose id was not part of the candidate
// set (a hallucinated id the oracle should never emit, defensively
// checked since the oracle output is otherwise untrusted).
func (r *Reconciler) apply(ctx context.Context, actions []memtypes.ReconcilerAction, candidates map[string]string, userID string) ([]memtypes.AddResult, error) {
	results := make([]memtypes.AddResult, 0, len(actions))

	for _, a := range actions {
		switch a.Op {
		case memtypes.ReconcilerAdd:
			res, err := r.applyAdd(ctx, a.Text, userID)
			if err != nil {
				return results, err
			}
			results = append(results, res)

		case memtypes.ReconcilerUpdate:
			if _, ok := candidates[a.ID]; !ok {
				r.log.Warn("reconciler: update targets unknown id, dropping", "id", a.ID)
				continue
			}
			res, err := r.applyUpdate(ctx, a.ID, a.Text)
			if err != nil {
				return results, err
			}
			results = append(results, res)

		case memtypes.ReconcilerDelete:
			if _, ok := candidates[a.ID]; !ok {
				r.log.Warn("reconciler: delete targets unknown id, dropping", "id", a.ID)
				continue
			}
			res, err := r.applyDelete(ctx, a.ID)
			if err != nil {
				return results, err
			}
			results = append(results, res)

		case memtypes.ReconcilerNone:
			results = append(results, memtypes.AddResult{ID: a.ID, Memory: a.Text, Event: memtypes.ReconcilerNone})
		}
	}
	return results, nil
}

func (r *Reconciler) applyAdd(ctx context.Context, text, userID string) (memtypes.AddResult, error) {
	vec, err := r.embed.Embed(ctx, text, embedder.PurposeAdd)
	if err != nil {
		return memtypes.AddResult{}, embedder.WrapUnavailable("reconcile_add", err)
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	payload := map[string]any{
		"data":        text,
		"hash":        hashText(text),
		"user_id":     userID,
		"created_at":  now,
		"memory_type": string(memtypes.MemoryTypeSemantic),
	}
	if err := r.store.Insert([]string{id}, [][]float32{vec}, []map[string]any{payload}); err != nil {
		return memtypes.AddResult{}, err
	}
	r.logHistory(ctx, memtypes.HistoryEvent{
		EventID: uuid.NewString(), MemoryID: id, NewText: &text,
		Op: memtypes.HistoryAdd, CreatedAt: now,
	})
	return memtypes.AddResult{ID: id, Memory: text, Event: memtypes.ReconcilerAdd}, nil
}

func (r *Reconciler) applyUpdate(ctx context.Context, id, text string) (memtypes.AddResult, error) {
	prev, _ := r.store.Get(id)
	var prevText *string
	if prev != nil {
		if t, ok := prev["data"].(string); ok {
			prevText = &t
		}
	}

	vec, err := r.embed.Embed(ctx, text, embedder.PurposeUpdate)
	if err != nil {
		return memtypes.AddResult{}, embedder.WrapUnavailable("reconcile_update", err)
	}
	now := time.Now().UTC()
	payload := map[string]any{"data": text, "hash": hashText(text), "updated_at": now}
	if prev != nil {
		for k, v := range prev {
			if _, exists := payload[k]; !exists {
				payload[k] = v
			}
		}
	}
	if err := r.store.Update(id, vec, payload); err != nil {
		return memtypes.AddResult{}, err
	}
	r.logHistory(ctx, memtypes.HistoryEvent{
		EventID: uuid.NewString(), MemoryID: id, PrevText: prevText, NewText: &text,
		Op: memtypes.HistoryUpdate, CreatedAt: now,
	})
	return memtypes.AddResult{ID: id, Memory: text, Event: memtypes.ReconcilerUpdate, PreviousMemory: prevText}, nil
}

func (r *Reconciler) applyDelete(ctx context.Context, id string) (memtypes.AddResult, error) {
	prev, _ := r.store.Get(id)
	var prevText *string
	if prev != nil {
		if t, ok := prev["data"].(string); ok {
			prevText = &t
		}
	}

	if err := r.store.Delete(id); err != nil {
		return memtypes.AddResult{}, err
	}
	now := time.Now().UTC()
	r.logHistory(ctx, memtypes.HistoryEvent{
		EventID: uuid.NewString(), MemoryID: id, PrevText: prevText,
		Op: memtypes.HistoryDelete, CreatedAt: now, IsDeleted: true,
	})
	text := ""
	if prevText != nil {
		text = *prevText
	}
	return memtypes.AddResult{ID: id, Memory: text, Event: memtypes.ReconcilerDelete, PreviousMemory: prevText}, nil
}

func (r *Reconciler) logHistory(ctx context.Context, ev memtypes.HistoryEvent) {
	if r.hist == nil {
		return
	}
	if err := r.hist.Record(ctx, ev); err != nil {
		r.log.Warn("reconciler: history write failed", "memory_id", ev.MemoryID, "error", err)
	}
}

func hashText(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
