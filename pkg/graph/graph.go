// Package graph is the graph store: it parses dialogue graph documents,
// validates them against the handler registry and serves the resulting
// immutable, index-based graph to concurrently running conversations.
package graph

import (
	"fmt"
	"slices"

	"github.com/MikaYeghi/agent-first/pkg/domain"
)

type edge struct {
	domain.Edge
	to    int
	match Predicate
}

// Graph is an immutable dialogue graph. Nodes are stored by index and looked
// up by id; edges keep their declared order per source node.
type Graph struct {
	source string
	nodes  []domain.Node
	index  map[string]int
	out    [][]edge
	edges  []domain.Edge
	start  int
}

// Source is the path or label the graph was loaded from.
func (g *Graph) Source() string {
	return g.source
}

// Start returns the Start node.
func (g *Graph) Start() domain.Node {
	return g.nodes[g.start]
}

// NodeAt returns the node with the given id, or domain.ErrNodeNotFound.
// The returned node shares its attribute map with the graph and must be
// treated as read-only.
func (g *Graph) NodeAt(id string) (domain.Node, error) {
	i, ok := g.index[id]
	if !ok {
		return domain.Node{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	return g.nodes[i], nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns the nodes in declared order.
func (g *Graph) Nodes() []domain.Node {
	return slices.Clone(g.nodes)
}

// Edges returns every edge in declared order.
func (g *Graph) Edges() []domain.Edge {
	return slices.Clone(g.edges)
}

// Outgoing returns the edges leaving id, in declared order.
func (g *Graph) Outgoing(id string) []domain.Edge {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]domain.Edge, 0, len(g.out[i]))
	for _, e := range g.out[i] {
		out = append(out, e.Edge)
	}
	return out
}

// Intents returns the distinct intents labelling the edges that leave id, in
// declared order, as the values the edges match.
func (g *Graph) Intents(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	var out []string
	for _, e := range g.out[i] {
		if v := IntentValue(e.Intent); v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Next returns the target of the first outgoing edge of id whose condition
// holds for slots. It returns false when no edge matches.
func (g *Graph) Next(id string, slots map[string]any) (string, bool) {
	i, ok := g.index[id]
	if !ok {
		return "", false
	}
	for _, e := range g.out[i] {
		if e.match == nil || e.match(slots) {
			return g.nodes[e.to].ID, true
		}
	}
	return "", false
}

// Handlers returns the distinct handler names bound by nodes, in node order.
func (g *Graph) Handlers() []string {
	var out []string
	for _, n := range g.nodes {
		if n.Handler != "" && !slices.Contains(out, n.Handler) {
			out = append(out, n.Handler)
		}
	}
	return out
}
