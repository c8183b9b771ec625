package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mnemoforge/mnemo/internal/logging"
	"github.com/mnemoforge/mnemo/internal/metrics"
	"github.com/mnemoforge/mnemo/pkg/embedder/mockembed"
	"github.com/mnemoforge/mnemo/pkg/generator/mockgen"
	"github.com/mnemoforge/mnemo/pkg/historylog"
	"github.com/mnemoforge/mnemo/pkg/memoryengine"
	"github.com/mnemoforge/mnemo/pkg/rag"
	"github.com/mnemoforge/mnemo/pkg/shortterm"
	"github.com/mnemoforge/mnemo/pkg/vectorstore"
)

func newTestServer(t *testing.T, responses ...string) (*echo.Echo, *Server) {
	t.Helper()
	dir := t.TempDir()
	store, err := vectorstore.Open(dir, "memories", 8, vectorstore.MetricIP, logging.Nop())
	if err != nil {
		t.Fatalf("vectorstore.Open: %v", err)
	}
	hist, err := historylog.Open(context.Background(), dir+"/history.db", logging.Nop())
	if err != nil {
		t.Fatalf("historylog.Open: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	gen := mockgen.New(responses...)
	embed := mockembed.New(8)
	stm := shortterm.New(32)
	engine := memoryengine.New(embed, gen, store, hist, stm, logging.Nop())
	pipeline := rag.New(engine, gen, rag.Config{TopK: 5, LTMThreshold: 0.0})

	srv := New(engine, pipeline, metrics.New())
	e := echo.New()
	srv.Register(e)
	return e, srv
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doRequest(e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doRequest(e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMemAddVerbatim(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doRequest(e, http.MethodPost, "/mem/add", `{"text":"my dog's name is Milo","user_id":"A","infer":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Milo") {
		t.Fatalf("expected response to echo stored memory, got %s", rec.Body.String())
	}
}

func TestMemAddMissingUserIDReturns400(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doRequest(e, http.MethodPost, "/mem/add", `{"text":"hello","infer":false}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"detail"`) {
		t.Fatalf("expected a detail-keyed error body per spec.md §6, got %s", rec.Body.String())
	}
}

func TestMemSearchExplicitNonPositiveLimitReturns400(t *testing.T) {
	e, _ := newTestServer(t)
	addRec := doRequest(e, http.MethodPost, "/mem/add", `{"text":"my dog's name is Milo","user_id":"A","infer":false}`)
	if addRec.Code != http.StatusOK {
		t.Fatalf("setup add failed: %d %s", addRec.Code, addRec.Body.String())
	}

	rec := doRequest(e, http.MethodPost, "/mem/search", `{"query":"dog","user_id":"A","limit":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an explicit limit=0, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"detail"`) {
		t.Fatalf("expected a detail-keyed error body, got %s", rec.Body.String())
	}
}

func TestMemSearchOmittedLimitDefaults(t *testing.T) {
	e, _ := newTestServer(t)
	addRec := doRequest(e, http.MethodPost, "/mem/add", `{"text":"my dog's name is Milo","user_id":"A","infer":false}`)
	if addRec.Code != http.StatusOK {
		t.Fatalf("setup add failed: %d %s", addRec.Code, addRec.Body.String())
	}

	rec := doRequest(e, http.MethodPost, "/mem/search", `{"query":"dog","user_id":"A"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected an omitted limit to fall back to the default, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMemSearchReturnsStoredMemory(t *testing.T) {
	e, _ := newTestServer(t)
	addRec := doRequest(e, http.MethodPost, "/mem/add", `{"text":"my dog's name is Milo","user_id":"A","infer":false}`)
	if addRec.Code != http.StatusOK {
		t.Fatalf("setup add failed: %d %s", addRec.Code, addRec.Body.String())
	}

	rec := doRequest(e, http.MethodPost, "/mem/search", `{"query":"dog","user_id":"A","limit":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Milo") {
		t.Fatalf("expected search to surface stored memory, got %s", rec.Body.String())
	}
}

func TestRAGQueryReturnsAnswerAndSources(t *testing.T) {
	e, _ := newTestServer(t, "the dog's name is Milo")
	addRec := doRequest(e, http.MethodPost, "/mem/add", `{"text":"my dog's name is Milo","user_id":"A","infer":false}`)
	if addRec.Code != http.StatusOK {
		t.Fatalf("setup add failed: %d %s", addRec.Code, addRec.Body.String())
	}

	rec := doRequest(e, http.MethodPost, "/rag/query", `{"question":"what's my dog's name","user_id":"A"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "the dog's name is Milo") {
		t.Fatalf("expected the mock answer to pass through, got %s", body)
	}
	if !strings.Contains(body, "sources") {
		t.Fatalf("expected sources in response, got %s", body)
	}
}

func TestRAGQueryTopKOverridesDefault(t *testing.T) {
	e, _ := newTestServer(t, "answer")
	for _, text := range []string{"fact one", "fact two", "fact three"} {
		rec := doRequest(e, http.MethodPost, "/mem/add", `{"text":"`+text+`","user_id":"A","infer":false}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("setup add failed: %d %s", rec.Code, rec.Body.String())
		}
	}

	rec := doRequest(e, http.MethodPost, "/rag/query", `{"question":"anything","user_id":"A","top_k":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Count(rec.Body.String(), `"id"`) != 1 {
		t.Fatalf("expected top_k=1 to cap sources at one, got %s", rec.Body.String())
	}
}
