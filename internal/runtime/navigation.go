package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/graph"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// ReservedNamespace is the slot prefix owned by the engine.
const ReservedNamespace = "sys"

// nodeEvent is a node transition waiting for the turn to commit.
type nodeEvent struct {
	typ  domain.EventType
	node domain.Node
}

// advance follows the first matching outgoing edge. Without a match, or on a
// self-loop, the conversation stays on node. The returned events are emitted
// by commit.
func (e *Engine) advance(next *domain.State, node domain.Node) []nodeEvent {
	to, ok := e.graph.Next(node.ID, next.Slots)
	if !ok || to == node.ID {
		return nil
	}
	target, err := e.graph.NodeAt(to)
	if err != nil {
		// Build only keeps edges between known nodes.
		return nil
	}

	next.CurrentNodeID = to
	next.Path = append(next.Path, to)
	return []nodeEvent{
		{typ: domain.EventNodeLeave, node: node},
		{typ: domain.EventNodeEnter, node: target},
	}
}

// routeIntent classifies text once against the intents labelling the edges
// that leave node and records the result in the intent slot, replacing the
// previous one. Extracted slots are merged too. A failed classification only
// leaves the intent unset, so the default edge is taken.
func (e *Engine) routeIntent(ctx context.Context, next *domain.State, node domain.Node, text string) error {
	if e.intents == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	labels := e.graph.Intents(node.ID)
	if len(labels) == 0 {
		return nil
	}

	res, err := e.intents.Classify(ctx, text, ports.IntentContext{History: next.History, Intents: labels})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Warn("intent routing failed", "node", node.ID, "err", err)
		delete(next.Slots, domain.IntentSlot)
		return nil
	}

	updates := make(map[string]any, len(res.Slots)+1)
	for k, v := range res.Slots {
		if !reserved(k) {
			updates[k] = v
		}
	}
	delete(updates, domain.IntentSlot)
	domain.MergeSlots(next.Slots, updates)

	intent, ok := matchIntent(res.Name, labels)
	if !ok {
		e.logger.Debug("utterance matched no edge intent", "node", node.ID, "intent", res.Name)
		delete(next.Slots, domain.IntentSlot)
		return nil
	}
	e.logger.Debug("intent routed", "node", node.ID, "intent", intent)
	next.Slots[domain.IntentSlot] = intent
	return nil
}

// matchIntent maps a classifier answer onto one of labels, ignoring case and
// surrounding space.
func matchIntent(name string, labels []string) (string, bool) {
	name = graph.IntentValue(strings.TrimSpace(name))
	for _, l := range labels {
		if strings.EqualFold(name, l) {
			return l, true
		}
	}
	return "", false
}

// checkReserved rejects slot updates into the engine namespace.
func checkReserved(slots map[string]any) error {
	for k := range slots {
		if reserved(k) {
			return fmt.Errorf("%w: cannot write slot %q", domain.ErrReservedSlot, k)
		}
	}
	return nil
}

func reserved(key string) bool {
	return key == ReservedNamespace || strings.HasPrefix(key, ReservedNamespace+".")
}

func (e *Engine) emitNode(ctx context.Context, hook func(context.Context, *domain.NodeEvent), typ domain.EventType, sessionID string, node domain.Node) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: typ, SessionID: sessionID},
		NodeID:    node.ID,
		NodeKind:  node.Kind,
	})
}
