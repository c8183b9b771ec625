// Package rag implements the thin retrieval-augmented-generation layer of
// spec.md §4.9: retrieve via MemoryEngine.Search, assemble a numbered
// context block, and ask the Generator to answer citing it. Grounded on
// original_source/my_mem/rag/rag_pipeline.py's RAGPipeline/AsyncRAGPipeline
// (_build_context's numbered block + parallel sources list, the fixed
// citation system prompt, and stream_query's side-channel sources — the
// stream itself carries only answer text).
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/mnemoforge/mnemo/internal/errs"
	"github.com/mnemoforge/mnemo/pkg/generator"
	"github.com/mnemoforge/mnemo/pkg/memoryengine"
)

const citationSystemPrompt = `You are a helpful assistant answering questions using the user's own
remembered context. Use the numbered context items below when relevant,
citing them inline as [1], [2], etc. If the context does not answer the
question, say so plainly rather than guessing.`

const (
	defaultTopK      = 5
	defaultLTMThresh = 0.75
)

// Source is one context item surfaced alongside an answer.
type Source struct {
	ID   string
	Text string
}

// Result is the response of a non-streaming query.
type Result struct {
	Answer  string
	Sources []Source
}

// Pipeline answers questions by retrieving memories via MemoryEngine and
// asking a Generator to respond grounded in them.
type Pipeline struct {
	engine *memoryengine.Engine
	gen    generator.Generator
	topK   int
	thresh float64
}

// Config configures retrieval depth and threshold.
type Config struct {
	TopK         int
	LTMThreshold float64
}

// New constructs a Pipeline.
func New(engine *memoryengine.Engine, gen generator.Generator, cfg Config) *Pipeline {
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	thresh := cfg.LTMThreshold
	if thresh == 0 {
		thresh = defaultLTMThresh
	}
	return &Pipeline{engine: engine, gen: gen, topK: topK, thresh: thresh}
}

func (p *Pipeline) retrieve(ctx context.Context, question, userID string, topK int) (string, []Source, error) {
	if topK <= 0 {
		topK = p.topK
	}
	items, err := p.engine.Search(ctx, question, userID, topK, p.thresh)
	if err != nil {
		return "", nil, err
	}

	var block strings.Builder
	sources := make([]Source, 0, len(items))
	for i, item := range items {
		fmt.Fprintf(&block, "[%d] %s\n", i+1, item.Memory)
		sources = append(sources, Source{ID: item.ID, Text: item.Memory})
	}
	return block.String(), sources, nil
}

// Query retrieves context for question, then asks the Generator for a
// grounded answer. The question is never re-ingested into memory.
func (p *Pipeline) Query(ctx context.Context, question, userID string) (Result, error) {
	return p.QueryTopK(ctx, question, userID, 0)
}

// QueryTopK is Query with a per-call retrieval depth override. topK <= 0
// falls back to the Pipeline's configured default, the same as Query. HTTP
// callers use this to honor a client-supplied top_k without needing a
// request-scoped Pipeline.
func (p *Pipeline) QueryTopK(ctx context.Context, question, userID string, topK int) (Result, error) {
	if userID == "" {
		return Result{}, errs.Wrap("query", errs.ErrInputInvalid, fmt.Errorf("user_id is required"))
	}

	block, sources, err := p.retrieve(ctx, question, userID, topK)
	if err != nil {
		return Result{}, err
	}

	messages := []generator.Message{
		{Role: generator.RoleSystem, Content: citationSystemPrompt},
		{Role: generator.RoleSystem, Content: "Context:\n" + block},
		{Role: generator.RoleUser, Content: question},
	}
	answer, err := p.gen.Generate(ctx, messages, generator.Options{ResponseFormat: generator.ResponseFree})
	if err != nil {
		return Result{}, err
	}

	return Result{Answer: strings.TrimSpace(answer), Sources: sources}, nil
}

// StreamQuery performs the same retrieval as Query but streams the answer.
// Sources are returned alongside the channels since they are not carried
// through the stream itself; callers read them once retrieval completes,
// without waiting for the stream to drain.
func (p *Pipeline) StreamQuery(ctx context.Context, question, userID string) (<-chan string, <-chan error, []Source, error) {
	return p.StreamQueryTopK(ctx, question, userID, 0)
}

// StreamQueryTopK is StreamQuery with a per-call retrieval depth override;
// see QueryTopK.
func (p *Pipeline) StreamQueryTopK(ctx context.Context, question, userID string, topK int) (<-chan string, <-chan error, []Source, error) {
	if userID == "" {
		return nil, nil, nil, errs.Wrap("stream_query", errs.ErrInputInvalid, fmt.Errorf("user_id is required"))
	}

	block, sources, err := p.retrieve(ctx, question, userID, topK)
	if err != nil {
		return nil, nil, nil, err
	}

	messages := []generator.Message{
		{Role: generator.RoleSystem, Content: citationSystemPrompt},
		{Role: generator.RoleSystem, Content: "Context:\n" + block},
		{Role: generator.RoleUser, Content: question},
	}
	tokens, errc := p.gen.Stream(ctx, messages, generator.Options{ResponseFormat: generator.ResponseFree})
	return tokens, errc, sources, nil
}
