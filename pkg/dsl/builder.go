package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
)

// Builder manages the tree construction.
type Builder struct {
	id    string
	root  string
	order []string
	nodes map[string]*NodeBuilder
	vars  []domain.VariableDescription
	enums map[string][]string
}

// New creates a new tree builder.
func New(id string) *Builder {
	return &Builder{
		id:    id,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a new node in the tree.
// If the node already exists, it returns the existing builder.
// The first node added becomes the root unless Root is called.
func (b *Builder) Add(id, kind string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: domain.NodeDescription{
			ID:   id,
			Kind: kind,
		},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Root sets the root node.
func (b *Builder) Root(id string) *Builder {
	b.root = id
	return b
}

// Variable declares a blackboard variable.
func (b *Builder) Variable(name, typ string, value any) *Builder {
	b.vars = append(b.vars, domain.VariableDescription{Name: name, Type: typ, Value: value})
	return b
}

// Shared declares a variable shared by every instance of the tree.
func (b *Builder) Shared(name, typ string, value any) *Builder {
	b.vars = append(b.vars, domain.VariableDescription{Name: name, Type: typ, Value: value, Shared: true})
	return b
}

// Enum declares an enumeration usable as a variable type.
func (b *Builder) Enum(name string, members ...string) *Builder {
	if b.enums == nil {
		b.enums = make(map[string][]string)
	}
	b.enums[name] = members
	return b
}

// Build returns the description. Structural checks beyond the presence of
// the root are left to the compiler.
func (b *Builder) Build() (*domain.TreeDescription, error) {
	if b.id == "" {
		return nil, errors.New("tree missing ID")
	}
	root := b.root
	if root == "" && len(b.order) > 0 {
		root = b.order[0]
	}
	if root == "" {
		return nil, fmt.Errorf("tree %s has no nodes", b.id)
	}

	desc := &domain.TreeDescription{
		ID:         b.id,
		Root:       root,
		Blackboard: b.vars,
		Enums:      b.enums,
		Nodes:      make([]domain.NodeDescription, 0, len(b.order)),
	}
	for _, id := range b.order {
		desc.Nodes = append(desc.Nodes, b.nodes[id].node)
	}
	return desc, nil
}

// Loader builds the description and serves it, together with others, from a memory loader.
func (b *Builder) Loader(others ...domain.TreeDescription) (*memory.Loader, error) {
	desc, err := b.Build()
	if err != nil {
		return nil, err
	}
	loader, err := memory.NewFromTrees(append([]domain.TreeDescription{*desc}, others...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}
