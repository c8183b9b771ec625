// Package anthropicgen implements generator.Generator against the Claude
// Messages API. Grounded on becomeliminal-nim-go-sdk's engine streaming
// loop and intelligencedev-manifold's anthropic client wiring (API key via
// option.WithAPIKey, model selection, NewStreaming + Accumulate).
package anthropicgen

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mnemoforge/mnemo/pkg/generator"
)

const defaultMaxTokens int64 = 1024

// Generator calls the Anthropic Messages API.
type Generator struct {
	client anthropic.Client
	model  string
}

// Config configures the Anthropic backend.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// New constructs an Anthropic-backed Generator.
func New(cfg Config) *Generator {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &Generator{client: anthropic.NewClient(opts...), model: model}
}

func convertMessages(messages []generator.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	var converted []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case generator.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case generator.RoleAssistant:
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, converted
}

func (g *Generator) buildParams(messages []generator.Message, opts generator.Options) anthropic.MessageNewParams {
	system, converted := convertMessages(messages)
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		Messages:  converted,
		System:    system,
		MaxTokens: maxTokens,
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = anthropic.Float(opts.TopP)
	}
	return params
}

func (g *Generator) Generate(ctx context.Context, messages []generator.Message, opts generator.Options) (string, error) {
	params := g.buildParams(messages, opts)
	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", generator.WrapUnavailable("generate", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	out := sb.String()
	if opts.ResponseFormat == generator.ResponseJSONObject {
		out = generator.StripCodeFences(out)
	}
	return out, nil
}

func (g *Generator) Stream(ctx context.Context, messages []generator.Message, opts generator.Options) (<-chan string, <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		params := g.buildParams(messages, opts)
		stream := g.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		message := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			_ = message.Accumulate(event)

			switch evt := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := evt.Delta.AsAny().(anthropic.TextDelta); ok {
					select {
					case out <- delta.Text:
					case <-ctx.Done():
						errc <- ctx.Err()
						return
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			errc <- generator.WrapUnavailable("stream", err)
		}
	}()

	return out, errc
}
