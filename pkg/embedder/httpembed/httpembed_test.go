package httpembed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mnemoforge/mnemo/internal/errs"
	"github.com/mnemoforge/mnemo/pkg/embedder"
)

func TestEmbedPostsInputAndReturnsVector(t *testing.T) {
	var gotReq embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 2, 3}})
	}))
	defer srv.Close()

	e := New(Config{Endpoint: srv.URL, Model: "test-model", Dim: 3}, nil)
	vec, err := e.Embed(context.Background(), "hello world", embedder.PurposeSearch)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 1 || vec[1] != 2 || vec[2] != 3 {
		t.Fatalf("expected [1 2 3], got %v", vec)
	}
	if gotReq.Input != "hello world" || gotReq.Model != "test-model" || gotReq.Purpose != "search" {
		t.Fatalf("unexpected request body: %+v", gotReq)
	}
}

func TestEmbedNonSuccessStatusWrapsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := New(Config{Endpoint: srv.URL}, nil)
	_, err := e.Embed(context.Background(), "hello", embedder.PurposeAdd)
	if !errors.Is(err, errs.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestEmbedDimensionMismatchWrapsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 2}})
	}))
	defer srv.Close()

	e := New(Config{Endpoint: srv.URL, Dim: 3}, nil)
	_, err := e.Embed(context.Background(), "hello", embedder.PurposeAdd)
	if !errors.Is(err, errs.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable for dimension mismatch, got %v", err)
	}
}

func TestDimensionReturnsConfiguredDim(t *testing.T) {
	e := New(Config{Dim: 42}, nil)
	if e.Dimension() != 42 {
		t.Fatalf("expected 42, got %d", e.Dimension())
	}
}
