// Package generator defines the capability for producing text (or a token
// stream) from a chat transcript, per spec.md §4.2.
package generator

import (
	"context"
	"strings"

	"github.com/mnemoforge/mnemo/internal/errs"
)

// Role mirrors the standard chat-message roles.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat-transcript turn.
type Message struct {
	Role    Role
	Content string
}

// ResponseFormat constrains how the caller expects to parse the output.
type ResponseFormat string

const (
	ResponseFree       ResponseFormat = "free"
	ResponseJSONObject ResponseFormat = "json_object"
)

// Options carries per-call generation parameters.
type Options struct {
	ResponseFormat ResponseFormat
	Temperature    float64
	MaxTokens      int
	TopP           float64
}

// Generator produces text or a stream of UTF-8 fragments from a transcript.
// Implementations must return errs.ErrGeneratorUnavailable (wrapped) on
// transport failure. Streaming must terminate the upstream call promptly
// when ctx is cancelled.
type Generator interface {
	Generate(ctx context.Context, messages []Message, opts Options) (string, error)
	Stream(ctx context.Context, messages []Message, opts Options) (<-chan string, <-chan error)
}

// WrapUnavailable is the shared helper backends use to report transport
// failures under the sentinel the contract requires.
func WrapUnavailable(op string, cause error) error {
	return errs.Wrap(op, errs.ErrGeneratorUnavailable, cause)
}

// StripCodeFences removes a single leading/trailing ``` fence (optionally
// tagged, e.g. ```json) from generator output, since json_object responses
// are frequently wrapped that way.
func StripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(t[:nl])
		if firstLine == "" || isBareWord(firstLine) {
			t = t[nl+1:]
		}
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

func isBareWord(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return len(s) > 0
}
