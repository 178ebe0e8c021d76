// Package anthropic implements the router.Completer interface over the
// Anthropic Messages API. The provider id selects the Claude model, so
// routing rules can A/B different models behind one completer.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/becomeliminal/cerebral-go-sdk/router"
)

// Config holds completer parameters.
type Config struct {
	// MaxTokens caps response length. Default: 1024.
	MaxTokens int64

	// SystemPrompt is prepended to every request when non-empty.
	SystemPrompt string

	// Models maps provider ids to Claude model names. Unmapped ids are
	// passed through as model names directly.
	Models map[router.ProviderID]string
}

// Completer calls Claude for completion requests.
type Completer struct {
	client *anthropic.Client
	config Config
}

var _ router.Completer = (*Completer)(nil)

// New creates a completer around an Anthropic client.
func New(client *anthropic.Client, config Config) *Completer {
	if config.MaxTokens == 0 {
		config.MaxTokens = 1024
	}
	return &Completer{client: client, config: config}
}

// Complete sends the prompt to the model selected by the provider id.
// Failures are returned untouched for the caller to wrap; no retries.
func (c *Completer) Complete(ctx context.Context, prompt string, provider router.ProviderID) (string, error) {
	model := string(provider)
	if mapped, ok := c.config.Models[provider]; ok {
		model = mapped
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.config.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.config.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: c.config.SystemPrompt},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
