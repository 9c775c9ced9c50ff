package agentfirst_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikaYeghi/agent-first"
	"github.com/MikaYeghi/agent-first/pkg/adapters/memory"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

var echoDescriptor = domain.HandlerDescriptor{Name: "Echo", Description: "Repeats the user"}

func echoHandler() (ports.Handler, error) {
	return ports.HandlerFunc(func(ctx context.Context, in ports.Input) (domain.HandlerOutput, error) {
		text := in.State.UserMessage.Text
		return domain.HandlerOutput{
			Answer: "echo: " + text,
			Slots:  map[string]any{"last": text},
		}, nil
	}), nil
}

func newEchoEngine(t *testing.T, opts ...agentfirst.Option) *agentfirst.Engine {
	t.Helper()
	opts = append([]agentfirst.Option{
		agentfirst.WithOracle(memory.NewOracle()),
		agentfirst.WithHandler(echoDescriptor, echoHandler),
	}, opts...)
	eng, err := agentfirst.New("testdata/echo.yaml", opts...)
	require.NoError(t, err)
	return eng
}

func TestEngine_Converse(t *testing.T) {
	eng := newEchoEngine(t)
	ctx := context.Background()

	res, err := eng.Converse(ctx, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, "Hi", res.Answer)
	assert.Equal(t, "echo", res.State.CurrentNodeID)

	res, err = eng.Converse(ctx, "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", res.Answer)
	assert.Equal(t, "hello", res.State.Slots["last"])
	assert.Equal(t, 2, res.State.TurnCount)
	require.NotNil(t, res.Diff)

	stored, err := eng.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, res.State.TurnCount, stored.TurnCount)
	assert.Equal(t, []domain.Message{
		{Role: domain.RoleAssistant, Content: "Hi"},
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, Content: "echo: hello"},
	}, stored.History)

	ids, err := eng.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	require.NoError(t, eng.EndSession(ctx, "s1"))
	_, err = eng.Session(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_ConverseUntilTerminal(t *testing.T) {
	eng := newEchoEngine(t)
	ctx := context.Background()

	for _, text := range []string{"", "bye", "anyone?"} {
		_, err := eng.Converse(ctx, "s1", text)
		require.NoError(t, err)
	}
	state, err := eng.Session(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, state.Terminated())
	assert.Equal(t, "bye", state.CurrentNodeID)

	_, err = eng.Converse(ctx, "s1", "again")
	assert.ErrorIs(t, err, domain.ErrConversationEnded)
}

func TestEngine_ConverseConcurrent(t *testing.T) {
	eng := newEchoEngine(t)
	ctx := context.Background()

	_, err := eng.Converse(ctx, "s1", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Converse(ctx, "s1", "ping")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := eng.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 11, state.TurnCount)
}

func TestEngine_GetResponse(t *testing.T) {
	eng := newEchoEngine(t)
	ctx := context.Background()

	res, err := eng.GetResponse(ctx, domain.Request{Text: "", Parameters: map[string]any{"user": "ana"}})
	require.NoError(t, err)
	assert.Equal(t, "Hi", res.Answer)
	assert.Equal(t, "ana", res.Parameters["user"])
	sys := res.Parameters[agentfirst.SysKey].(map[string]any)
	assert.Equal(t, "echo", sys["node"])
	assert.Equal(t, 1, sys["turn"])

	res, err = eng.GetResponse(ctx, domain.Request{
		Text:        "hello",
		ChatHistory: []domain.Message{{Role: domain.RoleAssistant, Content: "Hi"}},
		Parameters:  res.Parameters,
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", res.Answer)
	assert.Equal(t, "hello", res.Parameters["last"])
	assert.Equal(t, "ana", res.Parameters["user"])
	sys = res.Parameters[agentfirst.SysKey].(map[string]any)
	assert.Equal(t, 2, sys["turn"])
}

func TestEngine_GetResponseWeaklyTypedParameters(t *testing.T) {
	eng := newEchoEngine(t)

	// Parameters that went through JSON carry numbers as float64 or strings.
	res, err := eng.GetResponse(context.Background(), domain.Request{
		Text: "x",
		Parameters: map[string]any{
			agentfirst.SysKey: map[string]any{"node": "echo", "turn": "4", "status": "active"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: x", res.Answer)
	assert.Equal(t, 5, res.Parameters[agentfirst.SysKey].(map[string]any)["turn"])
}

func TestEngine_FailedTurnKeepsParameters(t *testing.T) {
	boom := errors.New("backend down")
	eng, err := agentfirst.New("testdata/echo.yaml",
		agentfirst.WithOracle(memory.NewOracle()),
		agentfirst.WithHandler(echoDescriptor, func() (ports.Handler, error) {
			return ports.HandlerFunc(func(context.Context, ports.Input) (domain.HandlerOutput, error) {
				return domain.HandlerOutput{}, boom
			}), nil
		}),
	)
	require.NoError(t, err)
	ctx := context.Background()

	params := map[string]any{
		"city":            "Paris",
		agentfirst.SysKey: map[string]any{"node": "echo", "turn": 1, "status": "active"},
	}
	res, err := eng.GetResponse(ctx, domain.Request{Text: "hello", Parameters: params})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, params, res.Parameters)
	assert.Empty(t, res.Answer)

	_, err = eng.Converse(ctx, "s1", "")
	require.NoError(t, err)
	_, err = eng.Converse(ctx, "s1", "hello")
	require.ErrorIs(t, err, boom)

	state, err := eng.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.TurnCount)
	assert.Equal(t, "echo", state.CurrentNodeID)
}

func TestNew_LoadErrors(t *testing.T) {
	t.Run("duplicate handler", func(t *testing.T) {
		_, err := agentfirst.New("testdata/echo.yaml",
			agentfirst.WithOracle(memory.NewOracle()),
			agentfirst.WithHandler(echoDescriptor, echoHandler),
			agentfirst.WithHandler(echoDescriptor, echoHandler),
		)
		assert.ErrorIs(t, err, domain.ErrDuplicateName)
	})
	t.Run("shadowing a built-in", func(t *testing.T) {
		_, err := agentfirst.New("testdata/echo.yaml",
			agentfirst.WithOracle(memory.NewOracle()),
			agentfirst.WithHandler(echoDescriptor, echoHandler),
			agentfirst.WithHandler(domain.HandlerDescriptor{Name: "DefaultWorker"}, echoHandler),
		)
		assert.ErrorIs(t, err, domain.ErrDuplicateName)
	})
	t.Run("unbound handler", func(t *testing.T) {
		_, err := agentfirst.New("testdata/echo.yaml", agentfirst.WithOracle(memory.NewOracle()))
		assert.ErrorIs(t, err, domain.ErrMalformedGraph)
	})
	t.Run("missing fallback", func(t *testing.T) {
		_, err := agentfirst.New("testdata/echo.yaml",
			agentfirst.WithoutDefaultHandlers(),
			agentfirst.WithHandler(echoDescriptor, echoHandler),
		)
		assert.ErrorIs(t, err, domain.ErrUnknownHandler)
	})
	t.Run("custom fallback", func(t *testing.T) {
		eng, err := agentfirst.New("testdata/echo.yaml",
			agentfirst.WithoutDefaultHandlers(),
			agentfirst.WithHandler(echoDescriptor, echoHandler),
			agentfirst.WithFallback("Echo"),
		)
		require.NoError(t, err)
		assert.Len(t, eng.Handlers(), 1)
	})
}

func TestNewSessionID(t *testing.T) {
	a, b := agentfirst.NewSessionID(), agentfirst.NewSessionID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

type intentFunc func(ctx context.Context, utterance string, ic ports.IntentContext) (domain.Intent, error)

func (f intentFunc) Classify(ctx context.Context, utterance string, ic ports.IntentContext) (domain.Intent, error) {
	return f(ctx, utterance, ic)
}

func namedHandler(name string) agentfirst.Option {
	return agentfirst.WithHandler(domain.HandlerDescriptor{Name: name, Description: name}, func() (ports.Handler, error) {
		return ports.HandlerFunc(func(ctx context.Context, in ports.Input) (domain.HandlerOutput, error) {
			return domain.HandlerOutput{Answer: name}, nil
		}), nil
	})
}

func newTaskGraphEngine(t *testing.T, nlu ports.IntentClassifier) *agentfirst.Engine {
	t.Helper()
	eng, err := agentfirst.New("pkg/graph/testdata/taskgraph.json",
		agentfirst.WithoutDefaultHandlers(),
		namedHandler("MessageWorker"),
		namedHandler("RAGWorker"),
		namedHandler("DatabaseWorker"),
		namedHandler("DefaultWorker"),
		agentfirst.WithIntentClassifier(nlu),
	)
	require.NoError(t, err)
	return eng
}

func TestEngine_IntentEdgesRouteTheUtterance(t *testing.T) {
	ctx := context.Background()
	var offered [][]string
	nlu := intentFunc(func(ctx context.Context, utterance string, ic ports.IntentContext) (domain.Intent, error) {
		offered = append(offered, ic.Intents)
		if strings.Contains(utterance, "demo") {
			return domain.Intent{Name: "user wants to book a demo", Slots: map[string]any{"day": "monday"}}, nil
		}
		return domain.Intent{Name: "small talk"}, nil
	})

	t.Run("matching intent", func(t *testing.T) {
		eng := newTaskGraphEngine(t, nlu)
		res, err := eng.Converse(ctx, "demo", "I want to book a demo")
		require.NoError(t, err)
		assert.Equal(t, "Hello! I'm your assistant. How can I help you today?", res.Answer)
		assert.Equal(t, "2", res.State.CurrentNodeID)
		assert.Equal(t, "User wants to book a demo", res.State.Slots[domain.IntentSlot])
		assert.Equal(t, "monday", res.State.Slots["day"])
		require.NotEmpty(t, offered)
		assert.Equal(t, []string{"User has product questions", "User wants to book a demo"}, offered[len(offered)-1])

		res, err = eng.Converse(ctx, "demo", "Monday at three")
		require.NoError(t, err)
		assert.Equal(t, "DatabaseWorker", res.Answer)
		assert.Equal(t, "3", res.State.CurrentNodeID)
	})

	t.Run("unknown intent takes the default edge", func(t *testing.T) {
		eng := newTaskGraphEngine(t, nlu)
		res, err := eng.Converse(ctx, "chat", "hello there")
		require.NoError(t, err)
		assert.Equal(t, "1", res.State.CurrentNodeID)
		assert.NotContains(t, res.State.Slots, domain.IntentSlot)
	})

	t.Run("opening turn without text takes the default edge", func(t *testing.T) {
		offered = nil
		eng := newTaskGraphEngine(t, nlu)
		res, err := eng.Converse(ctx, "quiet", "")
		require.NoError(t, err)
		assert.Equal(t, "1", res.State.CurrentNodeID)

		res, err = eng.Converse(ctx, "quiet", "I want to book a demo")
		require.NoError(t, err)
		assert.Equal(t, "RAGWorker", res.Answer)
		assert.Equal(t, "1", res.State.CurrentNodeID)
		assert.Empty(t, offered, "nodes without intent edges are not classified")
	})

	t.Run("classifier failure takes the default edge", func(t *testing.T) {
		failing := intentFunc(func(context.Context, string, ports.IntentContext) (domain.Intent, error) {
			return domain.Intent{}, errors.New("nlu down")
		})
		eng := newTaskGraphEngine(t, failing)
		res, err := eng.Converse(ctx, "down", "I want to book a demo")
		require.NoError(t, err)
		assert.Equal(t, "1", res.State.CurrentNodeID)
	})
}
