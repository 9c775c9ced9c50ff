package workers

import (
	"context"

	"github.com/MikaYeghi/agent-first/internal/prompts"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// DefaultWorkerDescriptor registers the DefaultWorker.
var DefaultWorkerDescriptor = domain.HandlerDescriptor{
	Name:        "DefaultWorker",
	Description: "Default worker decided by chat records if there is no specific worker for the user's query",
}

// Apology is the DefaultWorker answer when no oracle can be reached.
const Apology = "Sorry, I didn't quite catch that. Could you rephrase your question?"

// DefaultWorker is the fallback handler. It never fails a turn because of the oracle.
type DefaultWorker struct {
	Config
}

// NewDefaultWorker returns the DefaultWorker constructor. It works without an oracle.
func NewDefaultWorker(cfg Config) ports.Constructor {
	return func() (ports.Handler, error) {
		return &DefaultWorker{Config: cfg}, nil
	}
}

func (w *DefaultWorker) Execute(ctx context.Context, in ports.Input) (domain.HandlerOutput, error) {
	if w.Oracle == nil {
		return domain.HandlerOutput{Answer: Apology}, nil
	}

	answer, err := w.generate(ctx, prompts.Generator, prompts.Generation{Chat: chat(in)})
	if err != nil {
		if ctx.Err() != nil {
			return domain.HandlerOutput{}, ctx.Err()
		}
		w.logger().Warn("default worker fell back to apology", "err", err)
		return domain.HandlerOutput{Answer: Apology}, nil
	}
	if answer == "" {
		answer = Apology
	}
	return domain.HandlerOutput{Answer: answer}, nil
}
