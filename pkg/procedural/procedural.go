// Package procedural implements the ProceduralSummarizer of spec.md §4.10:
// it turns a dialogue window into one free-form summary, which
// memoryengine then stores as a single procedural MemoryRecord bypassing
// reconciliation entirely. Grounded on the fixed-template-plus-window
// prompting style original_source/my_mem/memory/main.py uses for its other
// oracle calls, generalized to a summarization rather than extraction task.
package procedural

import (
	"context"
	"strings"

	"github.com/mnemoforge/mnemo/internal/logging"
	"github.com/mnemoforge/mnemo/pkg/generator"
)

const defaultSystemPrompt = `Summarise the following conversation window into a concise procedural
memory: what the user was trying to accomplish and what approach or steps
were taken. Write 1-3 sentences of plain prose, no JSON, no preamble.`

// Summarizer builds dialogue summaries for procedural memory.
type Summarizer struct {
	gen generator.Generator
	log logging.Logger
}

// New constructs a Summarizer.
func New(gen generator.Generator, log logging.Logger) *Summarizer {
	if log == nil {
		log = logging.Nop()
	}
	return &Summarizer{gen: gen, log: log}
}

// Summarize renders messages into a transcript, calls the Generator with
// prompt as the system instruction (or the default template if prompt is
// empty), and returns the trimmed free-form summary.
func (s *Summarizer) Summarize(ctx context.Context, messages []generator.Message, prompt string) (string, error) {
	if prompt == "" {
		prompt = defaultSystemPrompt
	}

	var transcript strings.Builder
	for _, m := range messages {
		transcript.WriteString(string(m.Role))
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}

	req := []generator.Message{
		{Role: generator.RoleSystem, Content: prompt},
		{Role: generator.RoleUser, Content: transcript.String()},
	}
	out, err := s.gen.Generate(ctx, req, generator.Options{ResponseFormat: generator.ResponseFree})
	if err != nil {
		return "", generator.WrapUnavailable("summarize", err)
	}
	return strings.TrimSpace(out), nil
}
