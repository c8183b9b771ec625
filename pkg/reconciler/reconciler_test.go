package reconciler

import (
	"context"
	"testing"

	"github.com/mnemoforge/mnemo/internal/logging"
	"github.com/mnemoforge/mnemo/pkg/embedder/mockembed"
	"github.com/mnemoforge/mnemo/pkg/generator/mockgen"
	"github.com/mnemoforge/mnemo/pkg/historylog"
	"github.com/mnemoforge/mnemo/pkg/memtypes"
	"github.com/mnemoforge/mnemo/pkg/vectorstore"
)

func newTestReconciler(t *testing.T, responses ...string) (*Reconciler, *vectorstore.Store, *historylog.Log) {
	t.Helper()
	store, err := vectorstore.Open(t.TempDir(), "memories", 8, vectorstore.MetricIP, logging.Nop())
	if err != nil {
		t.Fatalf("vectorstore.Open: %v", err)
	}
	hist, err := historylog.Open(context.Background(), t.TempDir()+"/history.db", logging.Nop())
	if err != nil {
		t.Fatalf("historylog.Open: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	gen := mockgen.New(responses...)
	embed := mockembed.New(8)
	r := New(embed, gen, store, hist, logging.Nop())
	return r, store, hist
}

func TestReconcileAddsNewFact(t *testing.T) {
	r, store, hist := newTestReconciler(t, `{"memory": [{"event": "ADD", "text": "User likes pineapple on pizza"}]}`)

	results, err := r.Reconcile(context.Background(), []string{"User likes pineapple on pizza"}, "u1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(results) != 1 || results[0].Event != memtypes.ReconcilerAdd {
		t.Fatalf("expected one ADD, got %+v", results)
	}

	p, ok := store.Get(results[0].ID)
	if !ok || p["data"] != "User likes pineapple on pizza" {
		t.Fatalf("expected memory to be stored, got %+v", p)
	}

	events, err := hist.ForMemory(context.Background(), results[0].ID)
	if err != nil {
		t.Fatalf("ForMemory: %v", err)
	}
	if len(events) != 1 || events[0].Op != memtypes.HistoryAdd {
		t.Fatalf("expected one ADD history event, got %+v", events)
	}
}

func TestReconcileUpdatesOnContradiction(t *testing.T) {
	r, store, hist := newTestReconciler(t, `{"memory": [{"event": "ADD", "text": "User likes pineapple on pizza"}]}`)
	added, err := r.Reconcile(context.Background(), []string{"User likes pineapple on pizza"}, "u1")
	if err != nil || len(added) != 1 {
		t.Fatalf("setup ADD failed: %v %+v", err, added)
	}
	id := added[0].ID

	r2, _, _ := newTestReconciler(t)
	r2.store = store
	r2.hist = hist
	r2.gen = mockgenWithID(t, id, "User hates pineapple on pizza")

	results, err := r2.Reconcile(context.Background(), []string{"User hates pineapple on pizza"}, "u1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(results) != 1 || results[0].Event != memtypes.ReconcilerUpdate {
		t.Fatalf("expected one UPDATE, got %+v", results)
	}
	if results[0].PreviousMemory == nil || *results[0].PreviousMemory != "User likes pineapple on pizza" {
		t.Errorf("expected previous memory text to be captured, got %+v", results[0].PreviousMemory)
	}

	p, ok := store.Get(id)
	if !ok || p["data"] != "User hates pineapple on pizza" {
		t.Fatalf("expected updated text, got %+v", p)
	}

	events, err := hist.ForMemory(context.Background(), id)
	if err != nil {
		t.Fatalf("ForMemory: %v", err)
	}
	if len(events) != 2 || events[1].Op != memtypes.HistoryUpdate {
		t.Fatalf("expected ADD then UPDATE history, got %+v", events)
	}
}

func TestReconcileParseFailureFallsBackToAddPerFact(t *testing.T) {
	r, _, _ := newTestReconciler(t, "not valid json")

	facts := []string{"fact one", "fact two", "fact three"}
	results, err := r.Reconcile(context.Background(), facts, "u1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(results) != len(facts) {
		t.Fatalf("expected %d ADD results, got %d", len(facts), len(results))
	}
	for _, res := range results {
		if res.Event != memtypes.ReconcilerAdd {
			t.Errorf("expected ADD for every fallback fact, got %+v", res)
		}
	}
}

func TestReconcileDropsUpdateForUnknownID(t *testing.T) {
	r, _, _ := newTestReconciler(t, `{"memory": [{"event": "UPDATE", "id": "nonexistent", "text": "x"}]}`)

	results, err := r.Reconcile(context.Background(), []string{"some fact"}, "u1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected unknown-id UPDATE to be dropped, got %+v", results)
	}
}

func TestReconcileEmptyFactsIsNoOp(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	results, err := r.Reconcile(context.Background(), nil, "u1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results for empty facts, got %+v", results)
	}
}

func mockgenWithID(t *testing.T, id, text string) *mockgen.Generator {
	t.Helper()
	return mockgen.New(`{"memory": [{"event": "UPDATE", "id": "` + id + `", "text": "` + text + `"}]}`)
}
