package mockgen

import (
	"context"
	"testing"

	"github.com/mnemoforge/mnemo/pkg/generator"
)

func msgs(userText string) []generator.Message {
	return []generator.Message{{Role: generator.RoleUser, Content: userText}}
}

func TestGenerateReturnsQueuedResponsesInOrder(t *testing.T) {
	g := New("first", "second")
	a, _ := g.Generate(context.Background(), msgs("q1"), generator.Options{})
	b, _ := g.Generate(context.Background(), msgs("q2"), generator.Options{})
	if a != "first" || b != "second" {
		t.Fatalf("expected responses in order, got %q then %q", a, b)
	}
}

func TestGenerateFallsBackToEchoingLastUserMessage(t *testing.T) {
	g := New()
	out, err := g.Generate(context.Background(), msgs("what's up"), generator.Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "what's up" {
		t.Fatalf("expected echo of last user message, got %q", out)
	}
}

func TestQueueAppendsAfterConstruction(t *testing.T) {
	g := New("first")
	g.Queue("second")
	a, _ := g.Generate(context.Background(), msgs("q1"), generator.Options{})
	b, _ := g.Generate(context.Background(), msgs("q2"), generator.Options{})
	if a != "first" || b != "second" {
		t.Fatalf("expected queued responses in order, got %q then %q", a, b)
	}
}

func TestCallsRecordsRequestLog(t *testing.T) {
	g := New("ok")
	g.Generate(context.Background(), msgs("hi"), generator.Options{Temperature: 0.5})
	calls := g.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one recorded call, got %d", len(calls))
	}
	if calls[0].Opts.Temperature != 0.5 {
		t.Fatalf("expected options to be recorded, got %+v", calls[0].Opts)
	}
}

func TestStreamEmitsWordsThenCloses(t *testing.T) {
	g := New("one two three")
	tokens, errc := g.Stream(context.Background(), msgs("q"), generator.Options{})

	var got string
	for chunk := range tokens {
		got += chunk
	}
	if err := <-errc; err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if got != "one two three" {
		t.Fatalf("expected reassembled stream to equal the canned response, got %q", got)
	}
}

func TestStreamRespectsCancellation(t *testing.T) {
	g := New("one two three four five")
	ctx, cancel := context.WithCancel(context.Background())
	tokens, errc := g.Stream(ctx, msgs("q"), generator.Options{})

	<-tokens
	cancel()
	for range tokens {
	}
	if err := <-errc; err == nil {
		t.Fatalf("expected a cancellation error on the error channel")
	}
}
