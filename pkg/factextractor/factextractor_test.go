package factextractor

import (
	"context"
	"testing"

	"github.com/mnemoforge/mnemo/internal/logging"
	"github.com/mnemoforge/mnemo/pkg/generator/mockgen"
)

func TestExtractParsesFacts(t *testing.T) {
	gen := mockgen.New(`{"facts": ["User likes pineapple on pizza"]}`)
	e := New(gen, logging.Nop())

	facts := e.Extract(context.Background(), "I like pineapple on pizza")
	if len(facts) != 1 || facts[0] != "User likes pineapple on pizza" {
		t.Fatalf("expected one fact, got %+v", facts)
	}
}

func TestExtractStripsCodeFence(t *testing.T) {
	gen := mockgen.New("```json\n{\"facts\": [\"fact one\"]}\n```")
	e := New(gen, logging.Nop())

	facts := e.Extract(context.Background(), "anything")
	if len(facts) != 1 || facts[0] != "fact one" {
		t.Fatalf("expected one fact after fence strip, got %+v", facts)
	}
}

func TestExtractOnUnparseableOutputReturnsEmpty(t *testing.T) {
	gen := mockgen.New("not json at all")
	e := New(gen, logging.Nop())

	facts := e.Extract(context.Background(), "anything")
	if facts != nil {
		t.Fatalf("expected nil facts on parse failure, got %+v", facts)
	}
}

func TestExtractOnMissingKeyReturnsEmpty(t *testing.T) {
	gen := mockgen.New(`{"other": "value"}`)
	e := New(gen, logging.Nop())

	facts := e.Extract(context.Background(), "anything")
	if len(facts) != 0 {
		t.Fatalf("expected no facts when key absent, got %+v", facts)
	}
}
