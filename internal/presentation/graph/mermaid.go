// Package graph renders dialogue graphs as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/MikaYeghi/agent-first/pkg/domain"
)

// Overlay contains conversation data to highlight on the graph.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromState highlights the path of a conversation.
func OverlayFromState(state *domain.State) *Overlay {
	if state == nil {
		return nil
	}
	return &Overlay{VisitedNodes: state.Path, CurrentNode: state.CurrentNodeID}
}

// GenerateMermaid produces a Mermaid flowchart. Shapes follow the node role:
//   - Start: ((circle))
//   - Terminal: ([stadium])
//   - Node classified at runtime: {{hexagon}}
//   - Node bound to a handler: [rectangle], labelled with the handler
func GenerateMermaid(nodes []domain.Node, edges []domain.Edge, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.Kind == domain.NodeStart:
			opener, closer = "((", "))"
		case node.Kind == domain.NodeTerminal:
			opener, closer = "([", "])"
		case node.Handler == "":
			opener, closer = "{{", "}}"
		}

		label := node.ID
		if node.Handler != "" {
			label = fmt.Sprintf("%s <br/> %s", node.ID, node.Handler)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escape(label), closer)
	}

	for _, e := range edges {
		from, to := sanitizeMermaidID(e.From), sanitizeMermaidID(e.To)
		switch {
		case e.Intent != "":
			fmt.Fprintf(&sb, "    %s -- \"intent: %s\" --> %s\n", from, escape(e.Intent), to)
		case e.Condition != "":
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, escape(e.Condition), to)
		default:
			fmt.Fprintf(&sb, "    %s --> %s\n", from, to)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text stays readable on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID == "" || seen[safeID] || id == overlay.CurrentNode {
				continue
			}
			seen[safeID] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}
	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

var idReplacer = strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")

func sanitizeMermaidID(id string) string {
	return idReplacer.Replace(id)
}
