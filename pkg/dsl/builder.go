package dsl

import (
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/graph"
)

// Builder manages the graph construction.
type Builder struct {
	order []string
	nodes map[string]*NodeBuilder
	edges []domain.Edge
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a task node. If the node already exists, it returns the
// existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{ID: id, Kind: domain.NodeTask},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Definition returns the nodes and edges declared so far, unvalidated.
func (b *Builder) Definition() *graph.Definition {
	def := &graph.Definition{
		Nodes: make([]domain.Node, 0, len(b.order)),
		Edges: append([]domain.Edge(nil), b.edges...),
	}
	for _, id := range b.order {
		def.Nodes = append(def.Nodes, b.nodes[id].node)
	}
	return def
}

// Build validates the graph. handlers may be nil to skip handler checks.
func (b *Builder) Build(handlers graph.HandlerLookup) (*graph.Graph, error) {
	return graph.Build(b.Definition(), "dsl", handlers)
}
