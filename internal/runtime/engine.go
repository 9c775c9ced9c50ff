// Package runtime implements the orchestrator: the per-turn state machine
// that walks the dialogue graph, selects and runs handlers and commits the
// resulting conversation state.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MikaYeghi/agent-first/internal/classifier"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/graph"
	"github.com/MikaYeghi/agent-first/pkg/ports"
	"github.com/MikaYeghi/agent-first/pkg/registry"
)

const tracerName = "github.com/MikaYeghi/agent-first/internal/runtime"

const (
	// DefaultFallback is the handler used when classification names no candidate.
	DefaultFallback = "DefaultWorker"
	// DefaultMaxAttempts is the classifier attempt budget per selection.
	DefaultMaxAttempts = 2
	// DefaultMaxDepth bounds handler delegation within one turn.
	DefaultMaxDepth = 5
)

// Engine is the orchestrator. It holds no per-conversation state: every turn
// receives the previous state and returns the next one, so one Engine serves
// any number of concurrent conversations.
type Engine struct {
	graph       *graph.Graph
	registry    *registry.Registry
	classifier  *classifier.Classifier
	intents     ports.IntentClassifier
	fallback    string
	maxAttempts int
	maxDepth    int
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures the Engine.
type Option func(*Engine)

// WithFallback sets the handler used when classification fails.
func WithFallback(name string) Option {
	return func(e *Engine) {
		e.fallback = name
	}
}

// WithMaxAttempts sets the classifier attempt budget for handler selection.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		e.maxAttempts = n
	}
}

// WithMaxDepth sets the delegation depth limit.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithIntentClassifier routes intent-labelled edges. Without it those edges
// only match when a handler writes the intent slot.
func WithIntentClassifier(c ports.IntentClassifier) Option {
	return func(e *Engine) {
		e.intents = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// NewEngine wires an orchestrator. It fails when the fallback handler or a
// handler bound by the graph is not registered.
func NewEngine(g *graph.Graph, reg *registry.Registry, cls *classifier.Classifier, opts ...Option) (*Engine, error) {
	if g == nil || reg == nil {
		return nil, errors.New("runtime: graph and registry are required")
	}
	e := &Engine{
		graph:       g,
		registry:    reg,
		classifier:  cls,
		fallback:    DefaultFallback,
		maxAttempts: DefaultMaxAttempts,
		maxDepth:    DefaultMaxDepth,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.classifier == nil {
		e.classifier = classifier.New(nil, classifier.WithLogger(e.logger))
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}

	if !reg.Has(e.fallback) {
		return nil, fmt.Errorf("%w: fallback handler %q is not registered", domain.ErrUnknownHandler, e.fallback)
	}
	for _, name := range g.Handlers() {
		if !reg.Has(name) {
			return nil, fmt.Errorf("%w: graph binds %q", domain.ErrUnknownHandler, name)
		}
	}
	return e, nil
}

// Graph returns the graph the engine walks.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// Registry returns the handler registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Start returns a fresh conversation positioned at the Start node.
func (e *Engine) Start(ctx context.Context, sessionID string) *domain.State {
	start := e.graph.Start()
	state := domain.NewState(sessionID, start.ID)
	e.emitNode(ctx, e.hooks.OnNodeEnter, domain.EventNodeEnter, sessionID, start)
	return state
}

// Turn runs one turn. The given state is never modified: on success the
// returned state is the committed next state, on failure it is nil and the
// caller keeps the previous one.
func (e *Engine) Turn(ctx context.Context, state *domain.State, msg domain.UserMessage) (next *domain.State, answer string, err error) {
	if state == nil {
		return nil, "", errors.New("runtime: nil state")
	}
	if state.Terminated() {
		return nil, "", fmt.Errorf("%w: session %q", domain.ErrConversationEnded, state.SessionID)
	}

	ctx, span := e.tracer.Start(ctx, "orchestrator.turn", trace.WithAttributes(
		attribute.String("conversation.session_id", state.SessionID),
		attribute.String("conversation.node_id", state.CurrentNodeID),
		attribute.Int("conversation.turn", state.TurnCount+1),
	))
	started := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "turn failed")
		}
		span.End()
		if e.hooks.OnTurn != nil {
			e.hooks.OnTurn(ctx, &domain.TurnEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventTurn, SessionID: state.SessionID},
				NodeID:    state.CurrentNodeID,
				Turn:      state.TurnCount + 1,
				Duration:  time.Since(started),
				Err:       err,
			})
		}
	}()

	node, err := e.graph.NodeAt(state.CurrentNodeID)
	if err != nil {
		return nil, "", err
	}

	next = state.Clone()
	next.TurnCount++
	next.UserMessage = domain.UserMessage{
		Text:    msg.Text,
		History: append([]domain.Message(nil), msg.History...),
	}

	if node.Kind == domain.NodeStart && state.TurnCount == 0 {
		answer = node.Value()
		next.History = append(next.History, domain.Message{Role: domain.RoleAssistant, Content: answer})
		if err := e.routeIntent(ctx, next, node, msg.Text); err != nil {
			return nil, "", err
		}
		return e.commit(ctx, next, answer, e.advance(next, node))
	}

	name, err := e.selectHandler(ctx, next, node)
	if err != nil {
		return nil, "", err
	}
	span.SetAttributes(attribute.String("conversation.handler", name))

	out, err := e.Delegate(ctx, name, ports.Input{State: next.Clone(), Node: node})
	if err != nil {
		return nil, "", err
	}

	if err := checkReserved(out.Slots); err != nil {
		return nil, "", fmt.Errorf("handler %s: %w", name, err)
	}
	domain.MergeSlots(next.Slots, out.Slots)

	if msg.Text != "" {
		next.History = append(next.History, domain.Message{Role: domain.RoleUser, Content: msg.Text})
	}
	next.History = append(next.History, domain.Message{Role: domain.RoleAssistant, Content: out.Answer})

	var events []nodeEvent
	if node.Kind == domain.NodeTerminal {
		next.Status = domain.StatusTerminated
		events = []nodeEvent{{typ: domain.EventNodeLeave, node: node}}
	} else {
		if err := e.routeIntent(ctx, next, node, msg.Text); err != nil {
			return nil, "", err
		}
		events = e.advance(next, node)
	}
	return e.commit(ctx, next, out.Answer, events)
}

// commit is the single exit of a successful turn. A turn cancelled while its
// last call was returning is not committed and emits no node events.
func (e *Engine) commit(ctx context.Context, next *domain.State, answer string, events []nodeEvent) (*domain.State, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	for _, ev := range events {
		hook := e.hooks.OnNodeEnter
		if ev.typ == domain.EventNodeLeave {
			hook = e.hooks.OnNodeLeave
		}
		e.emitNode(ctx, hook, ev.typ, next.SessionID, ev.node)
	}
	e.logger.Debug("turn complete",
		"session", next.SessionID,
		"turn", next.TurnCount,
		"node", next.CurrentNodeID,
		"status", next.Status)
	return next, answer, nil
}

// selectHandler returns the handler bound to node or asks the classifier.
func (e *Engine) selectHandler(ctx context.Context, state *domain.State, node domain.Node) (string, error) {
	if node.Handler != "" {
		return node.Handler, nil
	}

	goal := node.Task()
	if goal == "" {
		goal = state.UserMessage.Text
	}
	res, err := e.classifier.Choose(ctx, classifier.Request{
		Purpose:     "handler",
		Goal:        goal,
		History:     state.History,
		UserText:    state.UserMessage.Text,
		Candidates:  e.registry.ListAll(e.fallback),
		MaxAttempts: e.maxAttempts,
		Fallback:    e.fallback,
	})
	if err != nil {
		return "", err
	}
	e.logger.Debug("handler selected", "node", node.ID, "handler", res.Chosen, "attempts", res.Attempts, "fallback", res.Fallback)
	return res.Chosen, nil
}
