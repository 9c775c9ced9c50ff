package domain

import (
	"errors"
	"strings"
)

var (
	// ErrDuplicateName is returned when a handler name is registered twice.
	ErrDuplicateName = errors.New("duplicate handler name")
	// ErrUnknownHandler is returned when a handler name is not in the registry.
	ErrUnknownHandler = errors.New("unknown handler")
	// ErrNodeNotFound is returned when a node id is not in the graph.
	ErrNodeNotFound = errors.New("node not found")
	// ErrMalformedGraph is returned when a graph description fails validation.
	ErrMalformedGraph = errors.New("malformed graph")
	// ErrDelegationLoop is returned when handler delegation exceeds the depth limit.
	ErrDelegationLoop = errors.New("delegation loop")
	// ErrConversationEnded is returned for turns on a terminated conversation.
	ErrConversationEnded = errors.New("conversation ended")
	// ErrConstructionFailure is returned when a handler constructor fails.
	ErrConstructionFailure = errors.New("handler construction failed")
	// ErrOracleUnavailable marks a failed oracle call.
	ErrOracleUnavailable = errors.New("oracle unavailable")
	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")
	// ErrReservedSlot is returned when a handler writes into the reserved "sys" namespace.
	ErrReservedSlot = errors.New("reserved slot namespace")
)

// MalformedGraphError collects every problem found while loading a graph.
type MalformedGraphError struct {
	Source   string
	Problems []string
}

func (e *MalformedGraphError) Error() string {
	var b strings.Builder
	b.WriteString("malformed graph")
	if e.Source != "" {
		b.WriteString(" ")
		b.WriteString(e.Source)
	}
	b.WriteString(": ")
	b.WriteString(strings.Join(e.Problems, "; "))
	return b.String()
}

// Is makes errors.Is(err, ErrMalformedGraph) true.
func (e *MalformedGraphError) Is(target error) bool {
	return target == ErrMalformedGraph
}
