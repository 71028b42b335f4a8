package domain

// TreeDescription is a compiled behavior tree as produced by an authoring tool.
// The compiler turns it into a runnable graph through the node kind registry.
type TreeDescription struct {
	ID   string `json:"id" yaml:"id"`
	Root string `json:"root" yaml:"root"`

	// Nodes lists every node once. Links are expressed through Children;
	// a node referenced as a child by several nodes must be of a join kind.
	Nodes []NodeDescription `json:"nodes" yaml:"nodes"`

	// Blackboard declares the variables of the tree.
	Blackboard []VariableDescription `json:"blackboard,omitempty" yaml:"blackboard,omitempty"`

	// Enums declares enumerations available to switch nodes, keyed by type name.
	Enums map[string][]string `json:"enums,omitempty" yaml:"enums,omitempty"`
}

// NodeDescription describes a single node.
type NodeDescription struct {
	ID       string   `json:"id" yaml:"id"`
	Kind     string   `json:"kind" yaml:"kind"`
	Children []string `json:"children,omitempty" yaml:"children,omitempty"`

	// Properties holds kind-specific configuration, decoded by the kind factory.
	// Variables are referenced by name or GUID, e.g. {"variable": "Health"}.
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`

	// Conditions are attached predicates (used by branching and guard modifiers).
	Conditions []ConditionDescription `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// ConditionDescription describes an attached condition.
type ConditionDescription struct {
	Kind       string         `json:"kind" yaml:"kind"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// VariableDescription declares a blackboard variable.
type VariableDescription struct {
	Name string `json:"name" yaml:"name"`
	// GUID is optional; a stable one is derived from the tree ID and name when empty.
	GUID string `json:"guid,omitempty" yaml:"guid,omitempty"`
	// Type is one of the built-in types (TypeInt, ...) or a declared enum name.
	Type  string `json:"type" yaml:"type"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`
	// Shared variables are canonicalized across every instance of the tree.
	Shared bool `json:"shared,omitempty" yaml:"shared,omitempty"`
}

// Node returns the description of the node with the given ID.
func (d *TreeDescription) Node(id string) (*NodeDescription, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// Built-in variable types of a VariableDescription.
const (
	TypeInt      = "int"
	TypeFloat    = "float"
	TypeString   = "string"
	TypeBool     = "bool"
	TypeDuration = "duration"
	// TypeChannel holds an event channel; its value is never persisted.
	TypeChannel = "channel"
	// TypeSubgraph holds a tree asset, referenced by description ID.
	TypeSubgraph = "subgraph"
)

// IsBuiltinType reports whether t is one of the built-in variable types.
func IsBuiltinType(t string) bool {
	switch t {
	case TypeInt, TypeFloat, TypeString, TypeBool, TypeDuration, TypeChannel, TypeSubgraph:
		return true
	}
	return false
}
