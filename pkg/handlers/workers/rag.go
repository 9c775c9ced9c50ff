package workers

import (
	"context"
	"fmt"

	"github.com/MikaYeghi/agent-first/internal/prompts"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// RAGWorkerDescriptor registers the RAGWorker.
var RAGWorkerDescriptor = domain.HandlerDescriptor{
	Name:        "RAGWorker",
	Description: "Answer the user's questions based on the company's internal documentations (unstructured text data), such as the policies, FAQs, and product information",
}

// RagMsgWorkerDescriptor registers the RagMsgWorker.
var RagMsgWorkerDescriptor = domain.HandlerDescriptor{
	Name:        "RagMsgWorker",
	Description: "A combination of RAG and Message Workers",
}

// SourcesSlot lists the sources of the passages the last answer was based on.
const SourcesSlot = "rag_sources"

// RAGWorker answers from retrieved passages.
type RAGWorker struct {
	Config
	Retriever ports.Retriever
}

// NewRAGWorker returns the RAGWorker constructor.
func NewRAGWorker(cfg Config, r ports.Retriever) ports.Constructor {
	return func() (ports.Handler, error) {
		if err := cfg.requireOracle(RAGWorkerDescriptor.Name); err != nil {
			return nil, err
		}
		if r == nil {
			return nil, fmt.Errorf("%s: %w: retriever", RAGWorkerDescriptor.Name, ErrMissingDependency)
		}
		return &RAGWorker{Config: cfg, Retriever: r}, nil
	}
}

func (w *RAGWorker) Execute(ctx context.Context, in ports.Input) (domain.HandlerOutput, error) {
	answer, sources, err := w.answer(ctx, in)
	if err != nil {
		return domain.HandlerOutput{}, err
	}
	return domain.HandlerOutput{Answer: answer, Slots: map[string]any{SourcesSlot: sources}}, nil
}

func (w *RAGWorker) answer(ctx context.Context, in ports.Input) (string, []string, error) {
	docs, err := w.Retriever.Retrieve(ctx, userText(in), w.topK())
	if err != nil {
		return "", nil, fmt.Errorf("retrieve: %w", err)
	}
	w.logger().Debug("retrieved passages", "count", len(docs))

	answer, err := w.generate(ctx, prompts.ContextGenerator, prompts.Generation{
		Chat:    chat(in),
		Context: formatDocuments(docs),
	})
	if err != nil {
		return "", nil, err
	}

	sources := make([]string, 0, len(docs))
	for _, d := range docs {
		src := d.Source
		if src == "" {
			src = d.ID
		}
		sources = append(sources, src)
	}
	return answer, sources, nil
}

// RagMsgWorker drafts an answer from retrieved passages, then rewrites it to
// carry the node's fixed message.
type RagMsgWorker struct {
	RAGWorker
}

// NewRagMsgWorker returns the RagMsgWorker constructor.
func NewRagMsgWorker(cfg Config, r ports.Retriever) ports.Constructor {
	return func() (ports.Handler, error) {
		if err := cfg.requireOracle(RagMsgWorkerDescriptor.Name); err != nil {
			return nil, err
		}
		if r == nil {
			return nil, fmt.Errorf("%s: %w: retriever", RagMsgWorkerDescriptor.Name, ErrMissingDependency)
		}
		return &RagMsgWorker{RAGWorker: RAGWorker{Config: cfg, Retriever: r}}, nil
	}
}

func (w *RagMsgWorker) Execute(ctx context.Context, in ports.Input) (domain.HandlerOutput, error) {
	draft, sources, err := w.answer(ctx, in)
	if err != nil {
		return domain.HandlerOutput{}, err
	}

	message := in.Node.Value()
	if message == "" {
		return domain.HandlerOutput{Answer: draft, Slots: map[string]any{SourcesSlot: sources}}, nil
	}

	answer, err := w.generate(ctx, prompts.MessageFlowGenerator, prompts.Generation{
		Chat:    chat(in),
		Initial: draft,
		Message: message,
	})
	if err != nil {
		return domain.HandlerOutput{}, err
	}
	return domain.HandlerOutput{Answer: answer, Slots: map[string]any{SourcesSlot: sources}}, nil
}
