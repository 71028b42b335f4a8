package dsl

import "github.com/aretw0/arbor/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.NodeDescription
	builder *Builder
}

// Children appends child links, in execution order.
func (n *NodeBuilder) Children(ids ...string) *NodeBuilder {
	n.node.Children = append(n.node.Children, ids...)
	return n
}

// Set sets a kind-specific property.
func (n *NodeBuilder) Set(key string, value any) *NodeBuilder {
	if n.node.Properties == nil {
		n.node.Properties = make(map[string]any)
	}
	n.node.Properties[key] = value
	return n
}

// When attaches a condition. Only branch and guard kinds accept conditions.
func (n *NodeBuilder) When(kind string, props map[string]any) *NodeBuilder {
	n.node.Conditions = append(n.node.Conditions, domain.ConditionDescription{
		Kind:       kind,
		Properties: props,
	})
	return n
}

// Compare attaches a compare condition on a variable.
func (n *NodeBuilder) Compare(variable, operator string, value any) *NodeBuilder {
	return n.When("compare", map[string]any{
		"variable": variable,
		"operator": operator,
		"value":    value,
	})
}

// Expr attaches an expression condition evaluated against the blackboard.
func (n *NodeBuilder) Expr(expression string) *NodeBuilder {
	return n.When("expression", map[string]any{"expression": expression})
}

// Add starts the next node, so a tree reads as one chain.
func (n *NodeBuilder) Add(id, kind string) *NodeBuilder {
	return n.builder.Add(id, kind)
}

// Build returns the underlying domain.NodeDescription.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() domain.NodeDescription {
	return n.node
}
