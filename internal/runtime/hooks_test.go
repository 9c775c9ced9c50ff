package runtime_test

import (
	"context"
	"testing"

	"github.com/MikaYeghi/agent-first/internal/runtime"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_LifecycleHooks(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t, map[string]ports.Constructor{"EchoWorker": echo()}, "EchoWorker")
	g := newGraph(t, reg,
		[]domain.Node{startNode(), {ID: "A", Kind: domain.NodeTerminal, Handler: "EchoWorker"}},
		[]domain.Edge{{From: "start", To: "A"}},
	)

	var entered, left, handlers []string
	var turns []int
	hooks := domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			entered = append(entered, e.NodeID)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			left = append(left, e.NodeID)
		},
		OnHandlerReturn: func(ctx context.Context, e *domain.HandlerEvent) {
			handlers = append(handlers, e.Handler)
			assert.Equal(t, "s1", e.SessionID)
		},
		OnTurn: func(ctx context.Context, e *domain.TurnEvent) {
			turns = append(turns, e.Turn)
		},
	}

	engine, err := runtime.NewEngine(g, reg, nil, runtime.WithLifecycleHooks(hooks))
	require.NoError(t, err)

	state := engine.Start(ctx, "s1")
	assert.Equal(t, []string{"start"}, entered)

	state, _, err = engine.Turn(ctx, state, domain.UserMessage{Text: "hi"})
	require.NoError(t, err)
	state, _, err = engine.Turn(ctx, state, domain.UserMessage{Text: "hello"})
	require.NoError(t, err)
	_, _, _ = engine.Turn(ctx, state, domain.UserMessage{Text: "ended"})

	assert.Equal(t, []string{"start", "A"}, entered)
	assert.Equal(t, []string{"start", "A"}, left)
	assert.Equal(t, []string{"EchoWorker"}, handlers)
	assert.Equal(t, []int{1, 2}, turns, "turns rejected before starting are not reported")
}

func TestEngine_CancelledTurnEmitsNoNodeEvents(t *testing.T) {
	ctx := context.Background()
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := newRegistry(t, map[string]ports.Constructor{
		"Cancelling": handler(func(ctx context.Context, in ports.Input) (domain.HandlerOutput, error) {
			// The caller goes away just as the handler succeeds.
			cancel()
			return domain.HandlerOutput{Answer: "done"}, nil
		}),
	}, "Cancelling")
	g := newGraph(t, reg,
		[]domain.Node{startNode(), {ID: "A", Handler: "Cancelling"}, {ID: "B", Kind: domain.NodeTerminal, Handler: "Cancelling"}},
		[]domain.Edge{{From: "start", To: "A"}, {From: "A", To: "B"}},
	)

	var entered, left []string
	hooks := domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) { entered = append(entered, e.NodeID) },
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) { left = append(left, e.NodeID) },
	}
	engine, err := runtime.NewEngine(g, reg, nil, runtime.WithLifecycleHooks(hooks))
	require.NoError(t, err)

	state, _, err := engine.Turn(ctx, engine.Start(ctx, "s1"), domain.UserMessage{})
	require.NoError(t, err)

	next, _, err := engine.Turn(turnCtx, state, domain.UserMessage{Text: "go"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, next)

	assert.Equal(t, []string{"start", "A"}, entered)
	assert.Equal(t, []string{"start"}, left)
}
