// Package httpembed implements embedder.Embedder against a generic HTTP
// embedding endpoint, rate-limited by a minimum delay between call starts.
// Grounded on intelligencedev-manifold's internal/rag/embedder client shape
// (single mutex, minimum inter-call delay, one chunk per request).
package httpembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mnemoforge/mnemo/pkg/embedder"
)

// Config configures the HTTP embedding backend.
type Config struct {
	// Endpoint is the full URL the embedder POSTs {"input", "model"} to.
	Endpoint string
	// Model is passed through to the backend so it can route per-model.
	Model string
	// MinDelay is the minimum spacing enforced between outgoing calls.
	MinDelay time.Duration
	// Dim is the expected embedding dimension, used only for validation.
	Dim int
}

// Embedder calls a remote HTTP embedding service. The mutex only guards the
// start-time bookkeeping; it is released before the request is sent, so
// calls may be in flight concurrently once MinDelay has elapsed.
type Embedder struct {
	cfg      Config
	client   *http.Client
	mu       sync.Mutex
	lastCall time.Time
}

// New constructs an HTTP embedder.
func New(cfg Config, client *http.Client) *Embedder {
	if client == nil {
		client = http.DefaultClient
	}
	return &Embedder{cfg: cfg, client: client}
}

func (e *Embedder) Dimension() int { return e.cfg.Dim }

type embedRequest struct {
	Input   string `json:"input"`
	Model   string `json:"model,omitempty"`
	Purpose string `json:"purpose,omitempty"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *Embedder) Embed(ctx context.Context, text string, purpose embedder.Purpose) ([]float32, error) {
	e.mu.Lock()
	if !e.lastCall.IsZero() {
		if wait := e.cfg.MinDelay - time.Since(e.lastCall); wait > 0 {
			e.mu.Unlock()
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, embedder.WrapUnavailable("embed", ctx.Err())
			}
			e.mu.Lock()
		}
	}
	e.lastCall = time.Now()
	e.mu.Unlock()

	body, err := json.Marshal(embedRequest{Input: text, Model: e.cfg.Model, Purpose: string(purpose)})
	if err != nil {
		return nil, embedder.WrapUnavailable("embed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, embedder.WrapUnavailable("embed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, embedder.WrapUnavailable("embed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, embedder.WrapUnavailable("embed", fmt.Errorf("embedding backend status %d", resp.StatusCode))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, embedder.WrapUnavailable("embed", err)
	}
	if e.cfg.Dim > 0 && len(out.Embedding) != e.cfg.Dim {
		return nil, embedder.WrapUnavailable("embed", fmt.Errorf("dimension mismatch: expected %d, got %d", e.cfg.Dim, len(out.Embedding)))
	}
	return out.Embedding, nil
}
