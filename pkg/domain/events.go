package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter      EventType = "node_enter"
	EventNodeLeave      EventType = "node_leave"
	EventHandlerCall    EventType = "handler_call"
	EventHandlerReturn  EventType = "handler_return"
	EventClassification EventType = "classification"
	EventTurn           EventType = "turn"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeKind NodeKind `json:"node_kind"`
}

// HandlerEvent represents a handler execution, including delegated ones.
type HandlerEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	Handler  string        `json:"handler"`
	Depth    int           `json:"depth"`
	Duration time.Duration `json:"duration,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
}

// ClassificationEvent reports the outcome of a classifier step.
type ClassificationEvent struct {
	EventBase
	Purpose  string `json:"purpose"`
	Chosen   string `json:"chosen"`
	Attempts int    `json:"attempts"`
	Fallback bool   `json:"fallback"`
}

// TurnEvent is emitted once per turn, committed or not.
type TurnEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	Turn     int           `json:"turn"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter      func(context.Context, *NodeEvent)
	OnNodeLeave      func(context.Context, *NodeEvent)
	OnHandlerCall    func(context.Context, *HandlerEvent)
	OnHandlerReturn  func(context.Context, *HandlerEvent)
	OnClassification func(context.Context, *ClassificationEvent)
	OnTurn           func(context.Context, *TurnEvent)
}

// CombineHooks fans every event out to all the given hook sets, in order.
func CombineHooks(hooks ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *NodeEvent) {
			for _, h := range hooks {
				if h.OnNodeEnter != nil {
					h.OnNodeEnter(ctx, e)
				}
			}
		},
		OnNodeLeave: func(ctx context.Context, e *NodeEvent) {
			for _, h := range hooks {
				if h.OnNodeLeave != nil {
					h.OnNodeLeave(ctx, e)
				}
			}
		},
		OnHandlerCall: func(ctx context.Context, e *HandlerEvent) {
			for _, h := range hooks {
				if h.OnHandlerCall != nil {
					h.OnHandlerCall(ctx, e)
				}
			}
		},
		OnHandlerReturn: func(ctx context.Context, e *HandlerEvent) {
			for _, h := range hooks {
				if h.OnHandlerReturn != nil {
					h.OnHandlerReturn(ctx, e)
				}
			}
		},
		OnClassification: func(ctx context.Context, e *ClassificationEvent) {
			for _, h := range hooks {
				if h.OnClassification != nil {
					h.OnClassification(ctx, e)
				}
			}
		},
		OnTurn: func(ctx context.Context, e *TurnEvent) {
			for _, h := range hooks {
				if h.OnTurn != nil {
					h.OnTurn(ctx, e)
				}
			}
		},
	}
}
