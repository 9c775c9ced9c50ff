package dsl

import (
	"fmt"

	"github.com/MikaYeghi/agent-first/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// Start marks the node as the conversation entry, opening with message.
func (n *NodeBuilder) Start(message string) *NodeBuilder {
	n.node.Kind = domain.NodeStart
	return n.Attr(domain.AttrValue, message)
}

// Terminal marks the node as ending the conversation once its handler ran.
func (n *NodeBuilder) Terminal() *NodeBuilder {
	n.node.Kind = domain.NodeTerminal
	return n
}

// Task sets the goal used to classify the handler of an unbound node.
func (n *NodeBuilder) Task(description string) *NodeBuilder {
	return n.Attr(domain.AttrTask, description)
}

// Handler binds the node to a registered handler.
func (n *NodeBuilder) Handler(name string) *NodeBuilder {
	n.node.Handler = name
	return n
}

// Attr sets a node attribute.
func (n *NodeBuilder) Attr(key string, value any) *NodeBuilder {
	if n.node.Attributes == nil {
		n.node.Attributes = make(map[string]any)
	}
	n.node.Attributes[key] = value
	return n
}

// Go adds an unconditional edge to target.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	return n.edge(domain.Edge{To: target})
}

// When adds an edge taken when condition holds over the slots.
func (n *NodeBuilder) When(condition, target string) *NodeBuilder {
	return n.edge(domain.Edge{To: target, Condition: condition})
}

// OnIntent adds an edge taken when the intent slot equals intent.
func (n *NodeBuilder) OnIntent(intent, target string) *NodeBuilder {
	return n.edge(domain.Edge{To: target, Intent: intent})
}

func (n *NodeBuilder) edge(e domain.Edge) *NodeBuilder {
	e.From = n.node.ID
	n.builder.edges = append(n.builder.edges, e)
	return n
}

// String describes the node, for debugging.
func (n *NodeBuilder) String() string {
	return fmt.Sprintf("%s(%s)", n.node.ID, n.node.Kind)
}
