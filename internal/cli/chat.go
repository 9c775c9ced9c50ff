package cli

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	agentfirst "github.com/MikaYeghi/agent-first"
	"github.com/MikaYeghi/agent-first/internal/config"
	"github.com/MikaYeghi/agent-first/pkg/adapters/memory"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/runner"
)

// ChatOptions configures an interactive conversation.
type ChatOptions struct {
	SessionID   string
	Fresh       bool
	Watch       bool
	TurnTimeout time.Duration

	// Handler reads user input and prints answers.
	Handler runner.IOHandler
	// Out receives system messages that are not part of the conversation.
	Out io.Writer
	// Build overrides engine construction, mainly in tests.
	Build BuildOptions
}

// RunChat drives one conversation on the terminal. In watch mode the graph
// file is reloaded whenever it changes and the conversation resumes on the
// new graph.
func RunChat(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ChatOptions) error {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Handler == nil {
		// One handler for the whole run, so that reloads share a single stdin reader.
		opts.Handler = runner.NewTextHandler(os.Stdin, os.Stdout)
	}
	if !opts.Watch {
		st, err := NewStack(ctx, cfg, logger, opts.Build)
		if err != nil {
			return err
		}
		defer st.Close(context.Background())

		if opts.Fresh && opts.SessionID != "" {
			if err := resetSession(ctx, st.Engine, opts.SessionID); err != nil {
				return err
			}
		}
		_, err = newChatRunner(logger, opts).Run(ctx, st.Engine)
		return ignoreEnded(err)
	}
	return runWatch(ctx, cfg, logger, opts)
}

func newChatRunner(logger *slog.Logger, opts ChatOptions) *runner.Runner {
	ropts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithSessionID(opts.SessionID),
		runner.WithTurnTimeout(opts.TurnTimeout),
	}
	if opts.Handler != nil {
		ropts = append(ropts, runner.WithInputHandler(opts.Handler))
	}
	return runner.NewRunner(ropts...)
}

func runWatch(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ChatOptions) error {
	// Watch mode resumes the same conversation across reloads.
	if opts.SessionID == "" {
		sum := md5.Sum([]byte(cfg.Graph))
		opts.SessionID = fmt.Sprintf("watch-%x", sum[:4])
	}
	if cfg.Store.Driver == "memory" {
		opts.Build.Extra = append(opts.Build.Extra, agentfirst.WithStore(memory.NewStore()))
	}

	changes, err := WatchFile(ctx, cfg.Graph, DefaultDebounce, logger)
	if err != nil {
		return err
	}
	logger.Info("watching graph", "path", cfg.Graph, "session_id", opts.SessionID)
	printSystemMessage(opts.Out, "Watching '%s' in session '%s'.", cfg.Graph, opts.SessionID)

	fresh := opts.Fresh
	for {
		reload, err := watchIteration(ctx, cfg, logger, opts, fresh, changes)
		fresh = false
		if err != nil && !reload {
			return err
		}
		if !reload {
			return nil
		}
		logger.Info("graph changed, reloading")
	}
}

// watchIteration runs the conversation until it ends or the graph changes.
// It reports whether the caller should reload.
func watchIteration(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ChatOptions, fresh bool, changes <-chan string) (bool, error) {
	st, err := NewStack(ctx, cfg, logger, opts.Build)
	if err != nil {
		// Wait for a fix.
		printSystemMessage(opts.Out, "Graph failed to load: %v", err)
		return waitForChange(ctx, changes), err
	}
	defer st.Close(context.Background())

	if fresh {
		if err := resetSession(ctx, st.Engine, opts.SessionID); err != nil {
			return false, err
		}
	}
	if err := guardReload(ctx, st.Engine, opts.SessionID, opts.Out); err != nil {
		return false, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		state *domain.State
		err   error
	}
	done := make(chan result, 1)
	go func() {
		s, err := newChatRunner(logger, opts).Run(runCtx, st.Engine)
		done <- result{s, err}
	}()

	select {
	case name, ok := <-changes:
		cancel()
		<-done
		if ok {
			printSystemMessage(opts.Out, "Change detected in '%s'.", name)
		}
		return ok, nil
	case res := <-done:
		if err := ignoreEnded(res.err); err != nil || ctx.Err() != nil || res.state == nil || !res.state.Terminated() {
			return false, err
		}
		printSystemMessage(opts.Out, "Conversation ended. Waiting for changes...")
		if !waitForChange(ctx, changes) {
			return false, nil
		}
		return true, resetSession(ctx, st.Engine, opts.SessionID)
	}
}

func waitForChange(ctx context.Context, changes <-chan string) bool {
	select {
	case <-ctx.Done():
		return false
	case _, ok := <-changes:
		return ok
	}
}

// guardReload restarts a conversation whose current node no longer exists.
func guardReload(ctx context.Context, engine *agentfirst.Engine, sessionID string, out io.Writer) error {
	state, err := engine.Session(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := engine.Graph().NodeAt(state.CurrentNodeID); err == nil {
		return nil
	}
	printSystemMessage(out, "Node '%s' no longer exists. Starting over.", state.CurrentNodeID)
	return resetSession(ctx, engine, sessionID)
}

func resetSession(ctx context.Context, engine *agentfirst.Engine, sessionID string) error {
	if err := engine.EndSession(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return fmt.Errorf("reset session %s: %w", sessionID, err)
	}
	return nil
}

func ignoreEnded(err error) error {
	if errors.Is(err, domain.ErrConversationEnded) {
		return nil
	}
	return err
}
