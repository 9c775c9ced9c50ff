// Package openai provides a ports.Oracle backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// Options configures the oracle.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	BaseURL             string
	MaxRetries          int
}

// Oracle sends every prompt as one chat completion. Each prompt chunk
// becomes a user message, in order.
type Oracle struct {
	client *openai.Client
	opts   Options
}

func defaults() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.0,
		MaxCompletionTokens: 1024,
		MaxRetries:          2,
	}
}

// New creates an oracle with its own client. The API key falls back to the
// OPENAI_API_KEY environment variable.
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
	client := openai.NewClient(clientOpts...)
	return &Oracle{client: &client, opts: opts}
}

// NewFromClient wraps an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Oracle {
	opts := defaults()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, opts: opts}
}

// Complete implements ports.Oracle.
func (o *Oracle) Complete(ctx context.Context, prompt ports.Prompt) (string, error) {
	if len(prompt) == 0 {
		return "", errors.New("openai: empty prompt")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(prompt))
	for _, chunk := range prompt {
		messages = append(messages, openai.UserMessage(chunk))
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               o.opts.Model,
		Temperature:         openai.Float(o.opts.Temperature),
		MaxCompletionTokens: openai.Int(o.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
