package registry

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/nodes"
	"github.com/aretw0/arbor/pkg/tree"
)

// Builder resolves references while a description is compiled into a graph.
type Builder interface {
	Blackboard() *blackboard.Blackboard
	Enums() *blackboard.EnumRegistry
	Logger() *slog.Logger
	// Subgraph resolves a tree asset by description ID.
	Subgraph(id string) (tree.Source, error)
	// Action returns the registered implementation of an external action.
	Action(name string) (nodes.ActionFunc, bool)
}

// Spec is the input of a node factory.
type Spec struct {
	ID         string
	Kind       string
	Properties map[string]any
	// Conditions are the attached conditions, already built.
	Conditions []tree.Condition
}

// Factory builds a node of one kind.
type Factory func(b Builder, spec Spec) (tree.Node, error)

// ConditionFactory builds an attached condition of one kind.
type ConditionFactory func(b Builder, props map[string]any) (tree.Condition, error)

// Kind describes a node kind: how to build it and how it may be linked.
type Kind struct {
	Name string
	// MaxChildren is the child limit, or tree.Unlimited.
	MaxChildren int
	// Join kinds may be linked under several parents.
	Join bool
	// Conditions marks kinds that evaluate attached conditions.
	Conditions bool
	New        Factory
}

// Registry manages the available node kinds, condition kinds and actions.
type Registry struct {
	mu         sync.RWMutex
	kinds      map[string]Kind
	conditions map[string]ConditionFactory
	actions    map[string]nodes.ActionFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds:      make(map[string]Kind),
		conditions: make(map[string]ConditionFactory),
		actions:    make(map[string]nodes.ActionFunc),
	}
}

// Default creates a registry holding the built-in kinds.
func Default() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

// Register adds a node kind. A kind with the same name is overwritten.
func (r *Registry) Register(k Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[k.Name] = k
}

// RegisterCondition adds a condition kind. A kind with the same name is overwritten.
func (r *Registry) RegisterCondition(name string, f ConditionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conditions[name] = f
}

// RegisterAction adds an action. An action with the same name is overwritten.
func (r *Registry) RegisterAction(name string, fn nodes.ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = fn
}

// Kind returns the node kind registered under name.
func (r *Registry) Kind(name string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[name]
	return k, ok
}

// Action returns the action registered under name.
func (r *Registry) Action(name string) (nodes.ActionFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.actions[name]
	return fn, ok
}

// HasCondition reports whether a condition kind is registered under name.
func (r *Registry) HasCondition(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conditions[name]
	return ok
}

// Kinds returns the registered node kind names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build looks up the kind of spec and runs its factory.
func (r *Registry) Build(b Builder, spec Spec) (tree.Node, error) {
	k, ok := r.Kind(spec.Kind)
	if !ok {
		return nil, fmt.Errorf("node %q: %w: %s", spec.ID, domain.ErrUnknownKind, spec.Kind)
	}
	n, err := k.New(b, spec)
	if err != nil {
		return nil, fmt.Errorf("node %q (%s): %w", spec.ID, spec.Kind, err)
	}
	return n, nil
}

// BuildCondition looks up the kind of d and runs its factory.
func (r *Registry) BuildCondition(b Builder, d domain.ConditionDescription) (tree.Condition, error) {
	r.mu.RLock()
	f, ok := r.conditions[d.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("condition: %w: %s", domain.ErrUnknownKind, d.Kind)
	}
	c, err := f(b, d.Properties)
	if err != nil {
		return nil, fmt.Errorf("condition %s: %w", d.Kind, err)
	}
	return c, nil
}
