package agentfirst

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/MikaYeghi/agent-first/internal/classifier"
	"github.com/MikaYeghi/agent-first/internal/runtime"
	"github.com/MikaYeghi/agent-first/pkg/adapters/memory"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/graph"
	"github.com/MikaYeghi/agent-first/pkg/handlers"
	"github.com/MikaYeghi/agent-first/pkg/ports"
	"github.com/MikaYeghi/agent-first/pkg/registry"
	"github.com/MikaYeghi/agent-first/pkg/session"
)

// Engine is the entry point of the library. It owns the sealed handler
// registry, the loaded graph, the orchestrator and the session manager.
// It is safe for concurrent use.
type Engine struct {
	runtime  *runtime.Engine
	graph    *graph.Graph
	registry *registry.Registry
	sessions *session.Manager

	deps     handlers.Deps
	defaults bool
	extra    []registration
	loaded   *graph.Graph

	fallback       string
	maxAttempts    int
	maxDepth       int
	attemptTimeout time.Duration

	store   ports.StateStore
	locker  ports.DistributedLocker
	lockTTL time.Duration
	hooks   domain.LifecycleHooks
	logger  *slog.Logger

	// Name labels the engine in logs; it is the graph file name.
	Name string
}

type registration struct {
	desc domain.HandlerDescriptor
	ctor ports.Constructor
}

// Option configures the Engine.
type Option func(*Engine)

// WithOracle sets the text-completion backend used by the classifier and the
// built-in workers.
func WithOracle(o ports.Oracle) Option {
	return func(e *Engine) {
		e.deps.Oracle = o
	}
}

// WithRetriever enables the RAGWorker and RagMsgWorker.
func WithRetriever(r ports.Retriever) Option {
	return func(e *Engine) {
		e.deps.Retriever = r
	}
}

// WithSearcher enables the SearchWorker.
func WithSearcher(s ports.Searcher) Option {
	return func(e *Engine) {
		e.deps.Searcher = s
	}
}

// WithDataSource enables the DatabaseWorker.
func WithDataSource(ds ports.DataSource) Option {
	return func(e *Engine) {
		e.deps.DataSource = ds
	}
}

// WithIntentClassifier routes intent-labelled edges and lets the
// DatabaseWorker extract an intent and slots.
func WithIntentClassifier(c ports.IntentClassifier) Option {
	return func(e *Engine) {
		e.deps.NLU = c
	}
}

// WithInstruction sets the system instruction of the built-in workers.
func WithInstruction(text string) Option {
	return func(e *Engine) {
		e.deps.Instruction = text
	}
}

// WithContextBudget sets the oracle prompt chunk size, in runes.
func WithContextBudget(runes int) Option {
	return func(e *Engine) {
		e.deps.ContextBudget = runes
	}
}

// WithTopK bounds the passages and search results given to the oracle.
func WithTopK(k int) Option {
	return func(e *Engine) {
		e.deps.TopK = k
	}
}

// WithHandler registers a custom handler after the built-in ones.
func WithHandler(desc domain.HandlerDescriptor, ctor ports.Constructor) Option {
	return func(e *Engine) {
		e.extra = append(e.extra, registration{desc: desc, ctor: ctor})
	}
}

// WithoutDefaultHandlers skips the built-in handlers. The fallback handler
// must then be registered with WithHandler.
func WithoutDefaultHandlers() Option {
	return func(e *Engine) {
		e.defaults = false
	}
}

// WithGraph uses an already built graph instead of loading one from disk.
func WithGraph(g *graph.Graph) Option {
	return func(e *Engine) {
		e.loaded = g
	}
}

// WithFallback sets the handler used when classification names no candidate.
func WithFallback(name string) Option {
	return func(e *Engine) {
		e.fallback = name
	}
}

// WithMaxAttempts sets the classifier attempt budget.
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

// WithAttemptTimeout bounds each classifier oracle call.
func WithAttemptTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.attemptTimeout = d
	}
}

// WithStore sets the session store. Defaults to an in-memory store.
func WithStore(s ports.StateStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker serializes turns of a session across processes.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithLockTTL bounds how long a distributed session lock is held.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New registers the handlers, loads the graph at graphPath and wires the
// orchestrator. Every load-time problem is returned here: an engine that was
// created never fails a turn because of its graph or registry.
func New(graphPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		defaults:    true,
		fallback:    runtime.DefaultFallback,
		maxAttempts: runtime.DefaultMaxAttempts,
		maxDepth:    runtime.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.loaded == nil && graphPath == "" {
		return nil, errors.New("graph path is required when no graph is provided")
	}
	if graphPath != "" {
		e.Name = filepath.Base(graphPath)
		e.logger = e.logger.With("graph", e.Name)
	}

	cls := classifier.New(e.deps.Oracle,
		classifier.WithContextBudget(e.deps.ContextBudget),
		classifier.WithAttemptTimeout(e.attemptTimeout),
		classifier.WithLogger(e.logger),
		classifier.WithLifecycleHooks(e.hooks),
	)

	e.registry = registry.NewRegistry()
	if e.defaults {
		e.deps.Classifier = cls
		e.deps.MaxAttempts = e.maxAttempts
		e.deps.Logger = e.logger
		if err := handlers.RegisterDefaults(e.registry, e.deps); err != nil {
			return nil, err
		}
	}
	for _, r := range e.extra {
		if err := e.registry.Register(r.desc, r.ctor); err != nil {
			return nil, err
		}
	}
	e.registry.Seal()

	e.graph = e.loaded
	if e.graph == nil {
		g, err := graph.LoadFile(graphPath, e.registry)
		if err != nil {
			return nil, err
		}
		e.graph = g
	}

	rt, err := runtime.NewEngine(e.graph, e.registry, cls,
		runtime.WithFallback(e.fallback),
		runtime.WithMaxAttempts(e.maxAttempts),
		runtime.WithMaxDepth(e.maxDepth),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithIntentClassifier(e.deps.NLU),
		runtime.WithLogger(e.logger),
	)
	if err != nil {
		return nil, err
	}
	e.runtime = rt

	if e.store == nil {
		e.store = memory.NewStore()
	}
	sessOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(e.locker))
	}
	if e.lockTTL > 0 {
		sessOpts = append(sessOpts, session.WithLockTTL(e.lockTTL))
	}
	e.sessions = session.NewManager(e.store, sessOpts...)

	e.logger.Debug("engine ready", "nodes", e.graph.Len(), "handlers", e.registry.Len())
	return e, nil
}

// NewSessionID returns a random conversation id.
func NewSessionID() string {
	return uuid.NewString()
}

// Graph returns the loaded graph.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// Handlers describes the registered handlers, in registration order.
func (e *Engine) Handlers() []domain.HandlerDescriptor {
	return e.registry.ListAll()
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Start returns a fresh state positioned at the Start node.
func (e *Engine) Start(ctx context.Context, sessionID string) *domain.State {
	return e.runtime.Start(ctx, sessionID)
}

// Turn runs one turn on state. state is never modified; on failure the
// returned state is nil and the caller keeps the previous one.
func (e *Engine) Turn(ctx context.Context, state *domain.State, msg domain.UserMessage) (*domain.State, string, error) {
	return e.runtime.Turn(ctx, state, msg)
}

// Converse runs one turn of the stored conversation sessionID, creating it
// on first use. The turn holds the session lock; the new state is saved
// only when the turn succeeds.
func (e *Engine) Converse(ctx context.Context, sessionID, text string) (domain.TurnResult, error) {
	if sessionID == "" {
		return domain.TurnResult{}, errors.New("session id is required")
	}

	var (
		answer string
		diff   *domain.StateDiff
	)
	next, err := e.sessions.Run(ctx, sessionID,
		func(ctx context.Context) *domain.State {
			return e.runtime.Start(ctx, sessionID)
		},
		func(ctx context.Context, state *domain.State) (*domain.State, error) {
			next, a, err := e.runtime.Turn(ctx, state, domain.UserMessage{Text: text, History: state.History})
			if err != nil {
				return nil, err
			}
			answer = a
			diff = domain.Diff(state, next)
			return next, nil
		},
	)
	if err != nil {
		return domain.TurnResult{}, err
	}
	return domain.TurnResult{Answer: answer, State: next, Diff: diff}, nil
}

// Session loads a stored conversation.
func (e *Engine) Session(ctx context.Context, sessionID string) (*domain.State, error) {
	return e.sessions.Load(ctx, sessionID)
}

// ListSessions returns the stored conversation ids.
func (e *Engine) ListSessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// EndSession deletes a stored conversation.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	return e.sessions.Delete(ctx, sessionID)
}
