package agentlogic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeOptions configures the Claude-backed logic.
type ClaudeOptions struct {
	Model        anthropic.Model
	MaxTokens    int64
	SystemPrompt string
	APIKey       string
}

// Claude is an agent logic backed by the Anthropic Messages API.
type Claude struct {
	client *anthropic.Client
	opts   ClaudeOptions
}

// NewClaude creates a Claude logic. The API key falls back to the SDK's
// ANTHROPIC_API_KEY environment lookup when not set explicitly.
func NewClaude(optFns ...func(o *ClaudeOptions)) *Claude {
	opts := ClaudeOptions{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Claude{client: &client, opts: opts}
}

// Respond sends text to the model and returns the first text block of the
// reply.
func (c *Claude) Respond(ctx context.Context, text, _ string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.opts.Model,
		MaxTokens: c.opts.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	}
	if c.opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.opts.SystemPrompt}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			if tb := block.AsText(); tb.Text != "" {
				return tb.Text, nil
			}
		}
	}
	return "", errors.New("model returned no text content")
}

// Func adapts the Claude logic to the agentlogic contract.
func (c *Claude) Func() Func {
	return c.Respond
}
