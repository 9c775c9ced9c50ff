package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	agentfirst "github.com/MikaYeghi/agent-first"
	"github.com/MikaYeghi/agent-first/internal/adapters/file"
	"github.com/MikaYeghi/agent-first/internal/config"
	"github.com/MikaYeghi/agent-first/pkg/adapters/anthropic"
	"github.com/MikaYeghi/agent-first/pkg/adapters/memory"
	"github.com/MikaYeghi/agent-first/pkg/adapters/nlu"
	"github.com/MikaYeghi/agent-first/pkg/adapters/openai"
	"github.com/MikaYeghi/agent-first/pkg/adapters/redis"
	"github.com/MikaYeghi/agent-first/pkg/adapters/search"
	"github.com/MikaYeghi/agent-first/pkg/adapters/sqlite"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/observability"
	"github.com/MikaYeghi/agent-first/pkg/persistence/middleware"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// Stack is an engine together with the resources it owns.
type Stack struct {
	Engine  *agentfirst.Engine
	Metrics *observability.Metrics

	closers []func(context.Context) error
}

// Close releases every resource in reverse order of acquisition.
func (st *Stack) Close(ctx context.Context) error {
	var errs []error
	for i := len(st.closers) - 1; i >= 0; i-- {
		errs = append(errs, st.closers[i](ctx))
	}
	st.closers = nil
	return errors.Join(errs...)
}

func (st *Stack) onClose(fn func(context.Context) error) {
	st.closers = append(st.closers, fn)
}

// BuildOptions adjusts how the stack is assembled.
type BuildOptions struct {
	// Extra options are appended after the config-derived ones.
	Extra []agentfirst.Option
	// Oracle replaces the configured provider.
	Oracle ports.Oracle
}

// NewStack builds an engine from cfg. On error every resource acquired so far
// is released.
func NewStack(ctx context.Context, cfg *config.Config, logger *slog.Logger, bo BuildOptions) (*Stack, error) {
	st := &Stack{}
	if err := st.build(ctx, cfg, logger, bo); err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	return st, nil
}

func (st *Stack) build(ctx context.Context, cfg *config.Config, logger *slog.Logger, bo BuildOptions) error {
	if cfg.Graph == "" {
		return errors.New("no graph configured: pass a graph file or set graph in agentorg.yaml")
	}

	tp, err := observability.NewTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	st.onClose(tp.Shutdown)

	st.Metrics = observability.NewMetrics()
	hooks := domain.CombineHooks(observability.LoggingHooks(logger), st.Metrics.Hooks())

	opts := []agentfirst.Option{
		agentfirst.WithLogger(logger),
		agentfirst.WithFallback(cfg.Orchestrator.Fallback),
		agentfirst.WithMaxAttempts(cfg.Orchestrator.MaxAttempts),
		agentfirst.WithMaxDepth(cfg.Orchestrator.MaxDepth),
		agentfirst.WithAttemptTimeout(cfg.Oracle.Timeout),
		agentfirst.WithContextBudget(cfg.Oracle.ContextBudget),
		agentfirst.WithInstruction(cfg.Oracle.Instruction),
		agentfirst.WithTopK(cfg.Retrieval.TopK),
		agentfirst.WithLifecycleHooks(hooks),
	}

	oracle := bo.Oracle
	if oracle == nil {
		oracle = newOracle(cfg.Oracle)
	}
	if oracle != nil {
		opts = append(opts, agentfirst.WithOracle(oracle))
	}

	storeOpts, err := st.stores(cfg.Store)
	if err != nil {
		return err
	}
	opts = append(opts, storeOpts...)

	capOpts, err := st.capabilities(ctx, cfg, oracle, logger)
	if err != nil {
		return err
	}
	opts = append(opts, capOpts...)
	opts = append(opts, bo.Extra...)

	engine, err := agentfirst.New(cfg.Graph, opts...)
	if err != nil {
		return err
	}
	st.Engine = engine
	return nil
}

func newOracle(cfg config.OracleConfig) ports.Oracle {
	switch cfg.Provider {
	case "openai":
		return openai.New(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.MaxTokens
			}
		})
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
		})
	}
	return nil
}

func (st *Stack) stores(cfg config.StoreConfig) ([]agentfirst.Option, error) {
	var (
		store ports.StateStore
		opts  []agentfirst.Option
	)
	switch cfg.Driver {
	case "file":
		store = file.New(cfg.Path)
	case "redis":
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		st.onClose(func(context.Context) error { return rs.Close() })
		store = rs
		opts = append(opts,
			agentfirst.WithLocker(redis.NewLocker(rs.Client(), rs.Prefix())),
			agentfirst.WithLockTTL(cfg.LockTTL),
		)
	case "memory", "":
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	mws, err := storeMiddleware(cfg)
	if err != nil {
		return nil, err
	}
	store = middleware.Chain(store, mws...)
	return append(opts, agentfirst.WithStore(store)), nil
}

// storeMiddleware masks first, so that encrypted envelopes hold masked slots.
func storeMiddleware(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.MaskSlots) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.MaskSlots)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if cfg.EncryptionKey != "" {
		ec := middleware.EncryptionConfig{}
		key, err := middleware.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("store.encryption_key: %w", err)
		}
		ec.ActiveKey = key
		for i, k := range cfg.FallbackKeys {
			key, err := middleware.ParseKey(os.ExpandEnv(k))
			if err != nil {
				return nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
			}
			ec.FallbackKeys = append(ec.FallbackKeys, key)
		}
		enc, err := middleware.NewEncryptionMiddleware(ec)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

// capabilities wires the optional worker backends.
func (st *Stack) capabilities(ctx context.Context, cfg *config.Config, oracle ports.Oracle, logger *slog.Logger) ([]agentfirst.Option, error) {
	var opts []agentfirst.Option

	if cfg.Retrieval.Path != "" {
		db, err := sqlite.Open(cfg.Retrieval.Path)
		if err != nil {
			return nil, fmt.Errorf("open retrieval index: %w", err)
		}
		st.onClose(func(context.Context) error { return db.Close() })
		r, err := sqlite.NewRetriever(ctx, db)
		if err != nil {
			return nil, err
		}
		opts = append(opts, agentfirst.WithRetriever(r))
	}

	if cfg.Database.Path != "" {
		actions, err := sqlite.LoadActions(cfg.Database.Actions)
		if err != nil {
			return nil, err
		}
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		st.onClose(func(context.Context) error { return db.Close() })
		ds, err := sqlite.NewDataSource(ctx, db, actions)
		if err != nil {
			return nil, err
		}
		opts = append(opts, agentfirst.WithDataSource(ds))
	}

	if cfg.Search.APIKey != "" {
		sopts := []search.Option{
			search.WithCacheTTL(cfg.Search.CacheTTL),
			search.WithLogger(logger),
		}
		if cfg.Search.Endpoint != "" {
			sopts = append(sopts, search.WithEndpoint(cfg.Search.Endpoint))
		}
		opts = append(opts, agentfirst.WithSearcher(search.New(cfg.Search.APIKey, sopts...)))
	}

	switch {
	case cfg.NLU.Endpoint != "":
		opts = append(opts, agentfirst.WithIntentClassifier(nlu.NewClient(cfg.NLU.Endpoint, nil)))
	case cfg.NLU.Oracle && oracle != nil:
		opts = append(opts, agentfirst.WithIntentClassifier(nlu.NewOracleClassifier(oracle, cfg.Oracle.ContextBudget)))
	}
	return opts, nil
}
