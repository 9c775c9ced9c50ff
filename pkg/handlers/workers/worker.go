// Package workers contains the built-in worker handlers. A worker performs
// one terminal function for the turn and never delegates.
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/MikaYeghi/agent-first/internal/prompts"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// ErrMissingDependency is returned by constructors whose capability is not configured.
var ErrMissingDependency = errors.New("missing dependency")

// Config is shared by every worker that talks to the oracle.
type Config struct {
	Oracle      ports.Oracle
	Instruction string
	// Budget is the prompt chunk size in runes; 0 disables chunking.
	Budget int
	// TopK bounds retrieval and search results.
	TopK   int
	Logger *slog.Logger
}

func (c Config) instruction() string {
	if c.Instruction == "" {
		return prompts.DefaultInstruction
	}
	return c.Instruction
}

func (c Config) topK() int {
	if c.TopK <= 0 {
		return 3
	}
	return c.TopK
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

func (c Config) requireOracle(name string) error {
	if c.Oracle == nil {
		return fmt.Errorf("%s: %w: oracle", name, ErrMissingDependency)
	}
	return nil
}

// generate renders tmpl, chunks it to the budget and asks the oracle.
func (c Config) generate(ctx context.Context, tmpl *template.Template, data prompts.Generation) (string, error) {
	if data.Instruction == "" {
		data.Instruction = c.instruction()
	}
	text, err := prompts.Render(tmpl, data)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	answer, err := c.Oracle.Complete(ctx, prompts.Chunk(text, c.Budget))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrOracleUnavailable, err)
	}
	return strings.TrimSpace(answer), nil
}

// chat formats the conversation of the turn in progress.
func chat(in ports.Input) string {
	if in.State == nil {
		return ""
	}
	return prompts.FormatChat(in.State.History, in.State.UserMessage.Text)
}

func userText(in ports.Input) string {
	if in.State == nil {
		return ""
	}
	return in.State.UserMessage.Text
}

func formatDocuments(docs []domain.Document) string {
	var b strings.Builder
	for _, d := range docs {
		if d.Source != "" {
			fmt.Fprintf(&b, "[%s] ", d.Source)
		}
		b.WriteString(d.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func formatResults(results []domain.SearchResult) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "%s (%s): %s\n", r.Title, r.URL, r.Content)
	}
	return b.String()
}

func formatRows(rows []map[string]any) string {
	if len(rows) == 0 {
		return "(no records)"
	}
	var b strings.Builder
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			fmt.Fprintf(&b, "%v\n", row)
			continue
		}
		b.Write(data)
		b.WriteString("\n")
	}
	return b.String()
}
