// Package validator lints a loaded graph for problems that do not stop it
// from loading but make parts of it dead.
package validator

import (
	"fmt"
	"strings"

	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/graph"
)

// ValidateGraph crawls the graph from its start node and reports nodes that
// can never be visited and edges that can never be taken.
func ValidateGraph(g *graph.Graph) error {
	visited := make(map[string]bool)
	queue := []string{g.Start().ID}

	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]

		if visited[currentID] {
			continue
		}
		visited[currentID] = true

		for _, e := range g.Outgoing(currentID) {
			if !visited[e.To] {
				queue = append(queue, e.To)
			}
		}
	}

	var problems []string
	for _, n := range g.Nodes() {
		if !visited[n.ID] {
			problems = append(problems, fmt.Sprintf("node '%s' is unreachable from '%s'", n.ID, g.Start().ID))
		}
		if n.Kind == domain.NodeTerminal {
			for _, e := range g.Outgoing(n.ID) {
				problems = append(problems, fmt.Sprintf("edge '%s' -> '%s' leaves a terminal node", e.From, e.To))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("found %d problems:\n- %s", len(problems), strings.Join(problems, "\n- "))
	}
	return nil
}
