package workers

import (
	"context"
	"fmt"

	"github.com/MikaYeghi/agent-first/internal/prompts"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// SearchWorkerDescriptor registers the SearchWorker.
var SearchWorkerDescriptor = domain.HandlerDescriptor{
	Name:        "SearchWorker",
	Description: "Answer the user's questions based on real-time online search results",
}

// SearchWorker answers from an external search.
type SearchWorker struct {
	Config
	Searcher ports.Searcher
}

// NewSearchWorker returns the SearchWorker constructor.
func NewSearchWorker(cfg Config, s ports.Searcher) ports.Constructor {
	return func() (ports.Handler, error) {
		if err := cfg.requireOracle(SearchWorkerDescriptor.Name); err != nil {
			return nil, err
		}
		if s == nil {
			return nil, fmt.Errorf("%s: %w: searcher", SearchWorkerDescriptor.Name, ErrMissingDependency)
		}
		return &SearchWorker{Config: cfg, Searcher: s}, nil
	}
}

func (w *SearchWorker) Execute(ctx context.Context, in ports.Input) (domain.HandlerOutput, error) {
	results, err := w.Searcher.Search(ctx, userText(in), w.topK())
	if err != nil {
		return domain.HandlerOutput{}, fmt.Errorf("search: %w", err)
	}

	answer, err := w.generate(ctx, prompts.SearchAnswer, prompts.Generation{
		Chat:    chat(in),
		Context: formatResults(results),
	})
	if err != nil {
		return domain.HandlerOutput{}, err
	}
	return domain.HandlerOutput{Answer: answer}, nil
}
