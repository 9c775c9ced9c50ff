package runner

import (
	"context"

	"github.com/MikaYeghi/agent-first/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (structured) modes.
type IOHandler interface {
	// Output presents the answer of a committed turn.
	Output(ctx context.Context, answer string, state *domain.State) error

	// Input reads the next user message.
	Input(ctx context.Context) (string, error)

	// Signal notifies the handler of an event (e.g. "thinking") for visual
	// feedback.
	Signal(ctx context.Context, name string, args map[string]any) error

	// SystemOutput presents a meta-message (errors, status) distinct from
	// the conversation itself.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms an answer before it is printed, e.g. markdown
// to ANSI.
type ContentRenderer func(string) (string, error)
