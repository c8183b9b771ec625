package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestObserveIngestExposesLabeledSeries(t *testing.T) {
	e := New()
	e.ObserveIngest(true, 0.02, true)
	e.ObserveIngest(false, 0.01, false)
	e.RecordReconcilerAction("ADD")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	e.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"mnemo_engine_ingest_requests_total",
		`infer="true"`,
		`status="error"`,
		"mnemo_reconciler_actions_total",
		`op="ADD"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected /metrics output to contain %q, got:\n%s", want, body)
		}
	}
}

func TestObserveSearchAndRAGQuery(t *testing.T) {
	e := New()
	e.ObserveSearch(0.005, true)
	e.ObserveRAGQuery(0.2, true)

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		"mnemo_engine_search_latency_seconds",
		"mnemo_rag_query_latency_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected /metrics output to contain %q, got:\n%s", want, body)
		}
	}
}
