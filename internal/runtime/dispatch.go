package runtime

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// Delegate constructs the named handler and executes it one level deeper
// than in. The orchestrator calls it with depth 0; agents call it through
// ports.Input.Delegator. It implements ports.Delegator.
func (e *Engine) Delegate(ctx context.Context, name string, in ports.Input) (domain.HandlerOutput, error) {
	if err := ctx.Err(); err != nil {
		return domain.HandlerOutput{}, err
	}

	depth := in.Depth + 1
	if depth > e.maxDepth {
		return domain.HandlerOutput{}, fmt.Errorf("%w: %s at depth %d exceeds limit %d", domain.ErrDelegationLoop, name, depth, e.maxDepth)
	}

	ctor, err := e.registry.Resolve(name)
	if err != nil {
		return domain.HandlerOutput{}, err
	}
	h, err := ctor()
	if err != nil {
		return domain.HandlerOutput{}, fmt.Errorf("%w: %s: %w", domain.ErrConstructionFailure, name, err)
	}

	in.Depth = depth
	in.Delegator = e
	// The graph is shared by every conversation.
	in.Node = in.Node.Clone()

	var sessionID string
	if in.State != nil {
		sessionID = in.State.SessionID
	}

	ctx, span := e.tracer.Start(ctx, "handler.execute", trace.WithAttributes(
		attribute.String("handler.name", name),
		attribute.Int("handler.depth", depth),
		attribute.String("conversation.node_id", in.Node.ID),
	))
	defer span.End()

	event := &domain.HandlerEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventHandlerCall, SessionID: sessionID},
		NodeID:    in.Node.ID,
		Handler:   name,
		Depth:     depth,
	}
	if e.hooks.OnHandlerCall != nil {
		e.hooks.OnHandlerCall(ctx, event)
	}

	started := time.Now()
	out, err := h.Execute(ctx, in)

	if e.hooks.OnHandlerReturn != nil {
		e.hooks.OnHandlerReturn(ctx, &domain.HandlerEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventHandlerReturn, SessionID: sessionID},
			NodeID:    in.Node.ID,
			Handler:   name,
			Depth:     depth,
			Duration:  time.Since(started),
			IsError:   err != nil,
		})
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		if depth == 1 {
			return domain.HandlerOutput{}, fmt.Errorf("handler %s: %w", name, err)
		}
		return domain.HandlerOutput{}, err
	}
	return out, nil
}
