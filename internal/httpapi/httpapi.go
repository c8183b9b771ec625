// Package httpapi exposes mnemo's memory and RAG operations over HTTP using
// echo, the same router library 88lin-divinesense's server uses. Handlers
// follow that repo's registerRoutes/respondWithError shape: a bind-validate-
// call-respond body per handler, JSON in and out, errors folded to a
// {"detail": "..."} body (the error shape spec.md §6 specifies) rather than
// echo's default HTML error page.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mnemoforge/mnemo/internal/errs"
	"github.com/mnemoforge/mnemo/internal/metrics"
	"github.com/mnemoforge/mnemo/pkg/memoryengine"
	"github.com/mnemoforge/mnemo/pkg/rag"
)

// Server wires the memory engine and RAG pipeline into an echo instance.
type Server struct {
	engine  *memoryengine.Engine
	rag     *rag.Pipeline
	metrics *metrics.Exporter
}

// New constructs a Server. metricsExporter may be nil, in which case the
// Server creates its own Exporter and serves that one at /metrics.
func New(engine *memoryengine.Engine, ragPipeline *rag.Pipeline, metricsExporter *metrics.Exporter) *Server {
	if metricsExporter == nil {
		metricsExporter = metrics.New()
	}
	return &Server{engine: engine, rag: ragPipeline, metrics: metricsExporter}
}

// Register attaches every route to e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	e.POST("/mem/add", s.memAdd)
	e.POST("/mem/search", s.memSearch)
	e.POST("/rag/query", s.ragQuery)
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type memAddRequest struct {
	Text   string `json:"text"`
	UserID string `json:"user_id"`
	Infer  *bool  `json:"infer"`
}

type memAddResultItem struct {
	ID             string  `json:"id"`
	Memory         string  `json:"memory"`
	Event          string  `json:"event"`
	PreviousMemory *string `json:"previous_memory,omitempty"`
}

func (s *Server) memAdd(c echo.Context) error {
	var req memAddRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "invalid request body")
	}

	infer := true
	if req.Infer != nil {
		infer = *req.Infer
	}

	start := time.Now()
	results, err := s.engine.Add(c.Request().Context(), req.Text, req.UserID, infer)
	s.metrics.ObserveIngest(infer, time.Since(start).Seconds(), err == nil)
	if err != nil {
		return respondWithEngineError(c, err)
	}

	out := make([]memAddResultItem, 0, len(results))
	for _, r := range results {
		s.metrics.RecordReconcilerAction(string(r.Event))
		out = append(out, memAddResultItem{
			ID: r.ID, Memory: r.Memory, Event: string(r.Event), PreviousMemory: r.PreviousMemory,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"results": out})
}

const defaultSearchLimit = 5

type memSearchRequest struct {
	Query        string   `json:"query"`
	UserID       string   `json:"user_id"`
	Limit        *int     `json:"limit"`
	LTMThreshold *float64 `json:"ltm_threshold"`
}

type memSearchResultItem struct {
	ID     string  `json:"id"`
	Memory string  `json:"memory"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

func (s *Server) memSearch(c echo.Context) error {
	var req memSearchRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "invalid request body")
	}

	thresh := 0.75
	if req.LTMThreshold != nil {
		thresh = *req.LTMThreshold
	}
	limit := defaultSearchLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	start := time.Now()
	items, err := s.engine.Search(c.Request().Context(), req.Query, req.UserID, limit, thresh)
	s.metrics.ObserveSearch(time.Since(start).Seconds(), err == nil)
	if err != nil {
		return respondWithEngineError(c, err)
	}

	out := make([]memSearchResultItem, 0, len(items))
	for _, it := range items {
		out = append(out, memSearchResultItem{ID: it.ID, Memory: it.Memory, Score: it.Score, Source: it.Source})
	}
	return c.JSON(http.StatusOK, map[string]any{"results": out})
}

type ragQueryRequest struct {
	Question string `json:"question"`
	UserID   string `json:"user_id"`
	TopK     int    `json:"top_k"`
}

type ragSourceItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (s *Server) ragQuery(c echo.Context) error {
	var req ragQueryRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "invalid request body")
	}

	start := time.Now()
	result, err := s.rag.QueryTopK(c.Request().Context(), req.Question, req.UserID, req.TopK)
	s.metrics.ObserveRAGQuery(time.Since(start).Seconds(), err == nil)
	if err != nil {
		return respondWithEngineError(c, err)
	}

	sources := make([]ragSourceItem, 0, len(result.Sources))
	for _, src := range result.Sources {
		sources = append(sources, ragSourceItem{ID: src.ID, Text: src.Text})
	}
	return c.JSON(http.StatusOK, map[string]any{"answer": result.Answer, "sources": sources})
}

func respondWithError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"detail": message})
}

// respondWithEngineError maps a sentinel error kind to its HTTP status,
// following the error handling design's OpError wrapping: callers inspect
// errors.Is against the sentinel, never string-match the message.
func respondWithEngineError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, errs.ErrInputInvalid):
		return respondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return respondWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrEmbeddingUnavailable), errors.Is(err, errs.ErrGeneratorUnavailable):
		return respondWithError(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, errs.ErrCancelled):
		return respondWithError(c, http.StatusRequestTimeout, err.Error())
	default:
		return respondWithError(c, http.StatusInternalServerError, err.Error())
	}
}
