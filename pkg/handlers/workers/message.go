package workers

import (
	"context"

	"github.com/MikaYeghi/agent-first/internal/prompts"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// MessageWorkerDescriptor registers the MessageWorker.
var MessageWorkerDescriptor = domain.HandlerDescriptor{
	Name:        "MessageWorker",
	Description: "The worker that used to deliver the message to the user, either a question or provide some information.",
}

// MessageWorker replies from the conversation, weaving in the node's fixed message.
type MessageWorker struct {
	Config
}

// NewMessageWorker returns the MessageWorker constructor.
func NewMessageWorker(cfg Config) ports.Constructor {
	return func() (ports.Handler, error) {
		if err := cfg.requireOracle(MessageWorkerDescriptor.Name); err != nil {
			return nil, err
		}
		return &MessageWorker{Config: cfg}, nil
	}
}

func (w *MessageWorker) Execute(ctx context.Context, in ports.Input) (domain.HandlerOutput, error) {
	data := prompts.Generation{Chat: chat(in), Message: in.Node.Value()}
	tmpl := prompts.MessageGenerator
	if data.Message == "" {
		tmpl = prompts.Generator
	}

	answer, err := w.generate(ctx, tmpl, data)
	if err != nil {
		return domain.HandlerOutput{}, err
	}
	return domain.HandlerOutput{Answer: answer}, nil
}
