// Package factextractor turns a single user utterance into a list of
// declarative facts, per spec.md §4.6. Grounded on
// original_source/my_mem/memory/main.py's `_add_to_vector_store` fact-phase
// (`FACT_RETRIEVAL_PROMPT` as a fixed system message, `f"Input:\n{message}"`
// as the user message, `response_format=json_object`, `remove_code_blocks`
// then `json.loads` with an empty-list fallback).
package factextractor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mnemoforge/mnemo/internal/logging"
	"github.com/mnemoforge/mnemo/pkg/generator"
)

const systemPrompt = `You extract atomic, declarative facts about the user from a single message.
Return ONLY a JSON object of the form {"facts": ["fact 1", "fact 2", ...]}.
Each fact must be a short, self-contained statement about the user's
preferences, attributes, plans, or relationships. If the message carries no
such fact, return {"facts": []}. Never include commentary outside the JSON
object.`

// Extractor calls a Generator to produce facts from one utterance.
type Extractor struct {
	gen generator.Generator
	log logging.Logger
}

// New constructs an Extractor.
func New(gen generator.Generator, log logging.Logger) *Extractor {
	if log == nil {
		log = logging.Nop()
	}
	return &Extractor{gen: gen, log: log}
}

type factsPayload struct {
	Facts []string `json:"facts"`
}

// Extract returns the facts found in text. Any failure — transport error,
// unparseable JSON, a missing "facts" key — is coerced to an empty list
// rather than propagated, so a flaky oracle degrades ingest to a no-op LTM
// update instead of failing the request.
func (e *Extractor) Extract(ctx context.Context, text string) []string {
	messages := []generator.Message{
		{Role: generator.RoleSystem, Content: systemPrompt},
		{Role: generator.RoleUser, Content: fmt.Sprintf("Input:\n%s", text)},
	}
	out, err := e.gen.Generate(ctx, messages, generator.Options{ResponseFormat: generator.ResponseJSONObject})
	if err != nil {
		e.log.Warn("factextractor: generator call failed, treating as no facts", "error", err)
		return nil
	}

	var payload factsPayload
	if err := json.Unmarshal([]byte(generator.StripCodeFences(out)), &payload); err != nil {
		e.log.Warn("factextractor: unparseable oracle output, treating as no facts", "error", err)
		return nil
	}
	return payload.Facts
}
