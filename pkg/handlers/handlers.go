// Package handlers registers the built-in agents and workers.
package handlers

import (
	"log/slog"

	"github.com/MikaYeghi/agent-first/internal/classifier"
	"github.com/MikaYeghi/agent-first/pkg/handlers/agents"
	"github.com/MikaYeghi/agent-first/pkg/handlers/workers"
	"github.com/MikaYeghi/agent-first/pkg/ports"
	"github.com/MikaYeghi/agent-first/pkg/registry"
)

// Deps are the capabilities the built-in handlers draw on. Only Oracle is
// needed for the message workers; the others enable more workers.
type Deps struct {
	Oracle     ports.Oracle
	Classifier *classifier.Classifier
	Retriever  ports.Retriever
	Searcher   ports.Searcher
	DataSource ports.DataSource
	NLU        ports.IntentClassifier

	Instruction   string
	ContextBudget int
	MaxAttempts   int
	TopK          int
	Logger        *slog.Logger
}

// RegisterDefaults registers the built-in handlers in a fixed order, which is
// also their order in classification prompts. Workers whose capability is
// not configured are skipped.
func RegisterDefaults(reg *registry.Registry, deps Deps) error {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cls := deps.Classifier
	if cls == nil {
		cls = classifier.New(deps.Oracle, classifier.WithContextBudget(deps.ContextBudget), classifier.WithLogger(logger))
	}
	cfg := workers.Config{
		Oracle:      deps.Oracle,
		Instruction: deps.Instruction,
		Budget:      deps.ContextBudget,
		TopK:        deps.TopK,
		Logger:      logger,
	}

	steps := []struct {
		enabled bool
		reg     func() error
	}{
		{true, func() error {
			return reg.Register(workers.MessageWorkerDescriptor, workers.NewMessageWorker(cfg))
		}},
		{deps.Retriever != nil, func() error {
			return reg.Register(workers.RAGWorkerDescriptor, workers.NewRAGWorker(cfg, deps.Retriever))
		}},
		{deps.Retriever != nil, func() error {
			return reg.Register(workers.RagMsgWorkerDescriptor, workers.NewRagMsgWorker(cfg, deps.Retriever))
		}},
		{deps.DataSource != nil, func() error {
			return reg.Register(workers.DatabaseWorkerDescriptor, workers.NewDatabaseWorker(cfg, deps.DataSource, deps.NLU, cls, deps.MaxAttempts))
		}},
		{deps.Searcher != nil, func() error {
			return reg.Register(workers.SearchWorkerDescriptor, workers.NewSearchWorker(cfg, deps.Searcher))
		}},
		{true, func() error {
			return reg.Register(workers.DefaultWorkerDescriptor, workers.NewDefaultWorker(cfg))
		}},
		{true, func() error {
			return reg.Register(agents.DefaultAgentDescriptor, agents.NewDefaultAgent(reg, cls, agents.Options{
				MaxAttempts: deps.MaxAttempts,
				Logger:      logger,
			}))
		}},
	}

	for _, s := range steps {
		if !s.enabled {
			continue
		}
		if err := s.reg(); err != nil {
			return err
		}
	}
	logger.Debug("built-in handlers registered", "count", reg.Len())
	return nil
}
