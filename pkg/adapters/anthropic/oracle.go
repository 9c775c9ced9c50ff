// Package anthropic provides a ports.Oracle backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = anthropic.ModelClaudeSonnet4_20250514

// Options configures the oracle.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
	MaxRetries  int
}

// Oracle sends every prompt as a single user message whose text blocks are
// the prompt chunks.
type Oracle struct {
	client *anthropic.Client
	opts   Options
}

func defaults() Options {
	return Options{
		Model:       DefaultModel,
		Temperature: 0.0,
		MaxTokens:   1024,
		MaxRetries:  2,
	}
}

// New creates an oracle with its own client. The API key falls back to the
// ANTHROPIC_API_KEY environment variable.
func New(optFns ...func(o *Options)) *Oracle {
	opts := defaults()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithMaxRetries(opts.MaxRetries)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Oracle{client: &client, opts: opts}
}

// NewFromClient wraps an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Oracle {
	opts := defaults()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, opts: opts}
}

// Complete implements ports.Oracle.
func (o *Oracle) Complete(ctx context.Context, prompt ports.Prompt) (string, error) {
	if len(prompt) == 0 {
		return "", errors.New("anthropic: empty prompt")
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(prompt))
	for _, chunk := range prompt {
		blocks = append(blocks, anthropic.NewTextBlock(chunk))
	}

	resp, err := o.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       o.opts.Model,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		MaxTokens:   o.opts.MaxTokens,
		Temperature: anthropic.Float(o.opts.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	return b.String(), nil
}
