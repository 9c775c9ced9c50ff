package observability

import (
	"context"
	"log/slog"

	"github.com/MikaYeghi/agent-first/pkg/domain"
)

// LoggingHooks logs every lifecycle event. Node and handler events go to
// Debug, failed turns to Warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "session", e.SessionID, "node_id", e.NodeID, "kind", e.NodeKind)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave", "session", e.SessionID, "node_id", e.NodeID)
		},
		OnHandlerCall: func(ctx context.Context, e *domain.HandlerEvent) {
			logger.DebugContext(ctx, "handler_call", "session", e.SessionID, "handler", e.Handler, "depth", e.Depth)
		},
		OnHandlerReturn: func(ctx context.Context, e *domain.HandlerEvent) {
			logger.DebugContext(ctx, "handler_return",
				"session", e.SessionID,
				"handler", e.Handler,
				"depth", e.Depth,
				"duration", e.Duration,
				"is_error", e.IsError)
		},
		OnClassification: func(ctx context.Context, e *domain.ClassificationEvent) {
			logger.DebugContext(ctx, "classification",
				"purpose", e.Purpose,
				"chosen", e.Chosen,
				"attempts", e.Attempts,
				"fallback", e.Fallback)
		},
		OnTurn: func(ctx context.Context, e *domain.TurnEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "turn failed", "session", e.SessionID, "node_id", e.NodeID, "turn", e.Turn, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "turn", "session", e.SessionID, "node_id", e.NodeID, "turn", e.Turn, "duration", e.Duration)
		},
	}
}
