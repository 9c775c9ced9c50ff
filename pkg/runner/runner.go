package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/MikaYeghi/agent-first/pkg/domain"
)

// Conversation is the stateful Turn API the runner drives.
// *agentfirst.Engine satisfies it.
type Conversation interface {
	Converse(ctx context.Context, sessionID, text string) (domain.TurnResult, error)
	Session(ctx context.Context, sessionID string) (*domain.State, error)
}

// Runner handles the conversation loop using the provided IOHandler.
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on stdio.
	Handler IOHandler

	// Logger is used for internal debug logging.
	Logger *slog.Logger

	// SessionID identifies the conversation in the engine's store.
	SessionID string

	// TurnTimeout bounds each turn. Zero means no limit.
	TurnTimeout time.Duration

	// Renderer is used by the default text handler.
	Renderer ContentRenderer
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) resolveHandler() IOHandler {
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout, WithTextHandlerRenderer(r.Renderer))
	}
	return r.Handler
}

// Run resumes or starts the conversation and loops until it reaches a
// terminal node, the input ends, the user types "exit" or "quit", or ctx is
// done. It returns the last committed state.
func (r *Runner) Run(ctx context.Context, conv Conversation) (*domain.State, error) {
	handler := r.resolveHandler()
	if r.SessionID == "" {
		r.SessionID = uuid.NewString()
	}
	logger := r.Logger.With("session_id", r.SessionID)

	signals := NewSignalManager(ctx)
	defer signals.Stop()

	state, err := r.open(ctx, conv, handler, signals)
	if err != nil || state == nil {
		return state, err
	}

	for !state.Terminated() {
		text, err := handler.Input(signals.Context())
		if err != nil {
			signals.CheckRace()
			if errors.Is(err, io.EOF) || signals.Context().Err() != nil {
				logger.Debug("input closed", "err", err)
				return state, nil
			}
			return state, fmt.Errorf("input error: %w", err)
		}
		if text == "exit" || text == "quit" {
			return state, nil
		}

		_ = handler.Signal(ctx, "thinking", nil)
		res, err := r.turn(signals, conv, text)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return state, ctx.Err()
			case signals.Interrupted():
				_ = handler.SystemOutput(ctx, "Turn interrupted.")
				signals.Reset()
				continue
			case errors.Is(err, domain.ErrConversationEnded):
				return state, err
			}
			logger.Warn("turn failed", "err", err)
			_ = handler.SystemOutput(ctx, fmt.Sprintf("Turn failed: %v. Please try again.", err))
			continue
		}
		if err := handler.Output(ctx, res.Answer, res.State); err != nil {
			return res.State, fmt.Errorf("output error: %w", err)
		}
		state = res.State
	}
	return state, nil
}

// open loads the session, or runs the opening turn of a new one.
func (r *Runner) open(ctx context.Context, conv Conversation, handler IOHandler, signals *SignalManager) (*domain.State, error) {
	state, err := conv.Session(ctx, r.SessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		res, err := r.turn(signals, conv, "")
		if err != nil {
			return nil, fmt.Errorf("start conversation: %w", err)
		}
		if err := handler.Output(ctx, res.Answer, res.State); err != nil {
			return nil, fmt.Errorf("output error: %w", err)
		}
		return res.State, nil
	case err != nil:
		return nil, err
	}

	if state.Terminated() {
		_ = handler.SystemOutput(ctx, fmt.Sprintf("Conversation %s has ended.", r.SessionID))
		return state, nil
	}
	_ = handler.SystemOutput(ctx, fmt.Sprintf("Resuming conversation %s at node %s.", r.SessionID, state.CurrentNodeID))
	if n := len(state.History); n > 0 && state.History[n-1].Role == domain.RoleAssistant {
		if err := handler.Output(ctx, state.History[n-1].Content, state); err != nil {
			return nil, fmt.Errorf("output error: %w", err)
		}
	}
	return state, nil
}

func (r *Runner) turn(signals *SignalManager, conv Conversation, text string) (domain.TurnResult, error) {
	ctx := signals.Context()
	if r.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.TurnTimeout)
		defer cancel()
	}
	return conv.Converse(ctx, r.SessionID, text)
}
