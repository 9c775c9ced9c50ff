package ports

import (
	"context"

	"github.com/MikaYeghi/agent-first/pkg/domain"
)

// Input is everything a handler sees during one execution.
type Input struct {
	// State is a snapshot owned by the call. Handlers may read it but must
	// not keep references to it after Execute returns.
	State *domain.State

	// Node is the graph node the turn is executing.
	Node domain.Node

	// Depth is the delegation depth of this execution, starting at 1.
	Depth int

	// Delegator forwards execution to another handler. Nil outside the orchestrator.
	Delegator Delegator
}

// Handler is a unit of work invoked by the orchestrator.
type Handler interface {
	Execute(ctx context.Context, in Input) (domain.HandlerOutput, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, in Input) (domain.HandlerOutput, error)

// Execute calls f(ctx, in).
func (f HandlerFunc) Execute(ctx context.Context, in Input) (domain.HandlerOutput, error) {
	return f(ctx, in)
}

// Constructor builds a fresh handler for one execution.
type Constructor func() (Handler, error)

// Delegator runs a named handler on behalf of an agent.
type Delegator interface {
	Delegate(ctx context.Context, name string, in Input) (domain.HandlerOutput, error)
}
