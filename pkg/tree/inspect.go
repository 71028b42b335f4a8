package tree

import "github.com/aretw0/arbor/pkg/domain"

// NodeInfo is a read-only view of one node, for tools.
type NodeInfo struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"`
	Status   domain.Status `json:"status"`
	Active   bool          `json:"active"`
	Root     bool          `json:"root,omitempty"`
	Children []string      `json:"children,omitempty"`
}

// Inspect returns every node in handle order.
func (g *Graph) Inspect() []NodeInfo {
	out := make([]NodeInfo, 0, len(g.nodes))
	for h, n := range g.nodes {
		b := n.NodeBase()
		info := NodeInfo{
			ID:     b.id,
			Kind:   b.kind,
			Status: b.status,
			Active: g.isActive[h],
			Root:   Handle(h) == g.root,
		}
		for _, c := range g.children[h] {
			info.Children = append(info.Children, g.nodes[c].NodeBase().id)
		}
		out = append(out, info)
	}
	return out
}
