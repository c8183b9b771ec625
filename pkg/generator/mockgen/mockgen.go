// Package mockgen is a scriptable Generator used by tests and local
// development: callers queue canned responses and the mock returns them in
// order, or falls back to echoing the last user message.
package mockgen

import (
	"context"
	"strings"
	"sync"

	"github.com/mnemoforge/mnemo/pkg/generator"
)

// Generator replays a queue of canned responses.
type Generator struct {
	mu        sync.Mutex
	responses []string
	calls     []ReqLog
}

// ReqLog records one Generate/Stream invocation for test assertions.
type ReqLog struct {
	Messages []generator.Message
	Opts     generator.Options
}

// New creates a mock generator that will return responses in order, one per
// call; once exhausted, it echoes the final user message.
func New(responses ...string) *Generator {
	return &Generator{responses: responses}
}

// Queue appends more canned responses to the end of the queue, for tests
// that need to react to state produced by an earlier call (e.g. an id the
// mock could not have known about at construction time).
func (g *Generator) Queue(responses ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses = append(g.responses, responses...)
}

// Calls returns the recorded request log.
func (g *Generator) Calls() []ReqLog {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]ReqLog, len(g.calls))
	copy(out, g.calls)
	return out
}

func (g *Generator) next(messages []generator.Message, opts generator.Options) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, ReqLog{Messages: messages, Opts: opts})

	if len(g.responses) > 0 {
		resp := g.responses[0]
		g.responses = g.responses[1:]
		return resp
	}

	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == generator.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func (g *Generator) Generate(_ context.Context, messages []generator.Message, opts generator.Options) (string, error) {
	return g.next(messages, opts), nil
}

func (g *Generator) Stream(ctx context.Context, messages []generator.Message, opts generator.Options) (<-chan string, <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)

	text := g.next(messages, opts)
	words := strings.Fields(text)

	go func() {
		defer close(out)
		defer close(errc)
		for i, w := range words {
			chunk := w
			if i < len(words)-1 {
				chunk += " "
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	return out, errc
}
