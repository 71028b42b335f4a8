package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Overlay contains runtime state to visualize on the graph.
type Overlay struct {
	Statuses map[string]domain.Status
	// Active lists the nodes currently in the active set.
	Active []string
}

// OverlayFromState builds an Overlay from a persisted snapshot.
func OverlayFromState(st *domain.TreeState) *Overlay {
	o := &Overlay{Statuses: make(map[string]domain.Status, len(st.Nodes))}
	for _, n := range st.Nodes {
		o.Statuses[n.ID] = n.Status
		if n.Status == domain.StatusRunning {
			o.Active = append(o.Active, n.ID)
		}
	}
	return o
}

var joinKinds = map[string]bool{"join": true, "wait_for_all": true}

var subgraphKinds = map[string]bool{"run_subgraph": true, "run_subgraph_dynamic": true}

// GenerateMermaid produces a Mermaid flowchart of a tree description.
// It applies semantic styling:
// - Root: ((Circle))
// - Join: {{Hexagon}}
// - Subgraph: [[Subroutine]]
// - Leaf with attached conditions: {Rhombus}
// - Default: [Rectangle]
// Children are numbered in evaluation order. Status classes are applied if an
// overlay is provided.
func GenerateMermaid(desc *domain.TreeDescription, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	root := desc.Root
	if root == "" && len(desc.Nodes) > 0 {
		root = desc.Nodes[0].ID
	}

	for _, node := range desc.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.ID == root:
			opener, closer = "((", "))"
		case joinKinds[node.Kind]:
			opener, closer = "{{", "}}"
		case subgraphKinds[node.Kind]:
			opener, closer = "[[", "]]"
		case len(node.Conditions) > 0:
			opener, closer = "{", "}"
		}

		label := fmt.Sprintf("%s <br/> <i>%s</i>", node.ID, node.Kind)
		for _, c := range node.Conditions {
			label += " <br/> ? " + c.Kind
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, strings.ReplaceAll(label, "\"", "'"), closer)

		for i, child := range node.Children {
			arrow := "-->"
			if len(node.Children) > 1 {
				arrow = fmt.Sprintf("-- %d -->", i+1)
			}
			if node.Kind == "branch" {
				arrow = "-- on_true -->"
				if i == 1 {
					arrow = "-- on_false -->"
				}
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", safeID, arrow, sanitizeMermaidID(child))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds.
		sb.WriteString("    classDef running fill:#ffeb3b,stroke:#fbc02d,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef waiting fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef success fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failure fill:#ffcdd2,stroke:#c62828,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef active stroke-width:4px;\n")

		ids := make([]string, 0, len(overlay.Statuses))
		for id := range overlay.Statuses {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			status := overlay.Statuses[id]
			if status == domain.StatusUninitialized {
				continue
			}
			if _, ok := desc.Node(id); !ok {
				continue
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(id), status)
		}
		for _, id := range overlay.Active {
			if _, ok := desc.Node(id); ok {
				fmt.Fprintf(&sb, "    class %s active;\n", sanitizeMermaidID(id))
			}
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "#", "_")
	return s
}
