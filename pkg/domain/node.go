package domain

import "fmt"

// NodeKind classifies the role of a node in the dialogue graph.
type NodeKind string

const (
	// NodeStart opens the conversation with a fixed message.
	NodeStart NodeKind = "start"
	// NodeTask runs a handler and follows its outgoing edges.
	NodeTask NodeKind = "task"
	// NodeTerminal runs a handler and ends the conversation.
	NodeTerminal NodeKind = "terminal"
)

// Well-known node attribute keys.
const (
	AttrValue    = "value"
	AttrTask     = "task"
	AttrDirected = "directed"
)

// Node is a dialogue node. Nodes are values; the graph stores them by index.
type Node struct {
	ID   string   `json:"id" yaml:"id"`
	Kind NodeKind `json:"kind" yaml:"kind"`

	// Handler is the statically bound handler name. Empty means the
	// orchestrator picks one with the classifier.
	Handler string `json:"handler,omitempty" yaml:"handler,omitempty"`

	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Value returns the fixed text of the node (the opening message for Start nodes).
func (n Node) Value() string {
	return n.attr(AttrValue)
}

// Task returns the task description, used as the classification goal.
func (n Node) Task() string {
	return n.attr(AttrTask)
}

func (n Node) attr(key string) string {
	v, ok := n.Attributes[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Clone returns a copy of the node whose attributes share no maps or slices
// with n.
func (n Node) Clone() Node {
	if n.Attributes != nil {
		n.Attributes = cloneMap(n.Attributes)
	}
	return n
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
