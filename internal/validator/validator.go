package validator

import (
	"fmt"
	"slices"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/google/uuid"
)

// Kinds is the part of the registry the validator consults.
type Kinds interface {
	Kind(name string) (registry.Kind, bool)
	HasCondition(name string) bool
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error { return e.Errors }

// Errors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func Errors(err error) []error {
	if aggr, ok := err.(*AggregateError); ok {
		return aggr.Errors
	}
	return nil
}

// Validate checks a description for structural problems: missing or
// duplicate nodes, unknown kinds, arity, shared children that are not joins,
// cycles, unreachable nodes and malformed variable declarations.
// It returns an *AggregateError listing every problem found.
func Validate(desc *domain.TreeDescription, kinds Kinds) error {
	v := &validation{desc: desc, kinds: kinds, index: make(map[string]int)}
	v.header()
	v.nodes()
	v.links()
	v.crawl()
	v.variables()
	if len(v.errs) > 0 {
		return &AggregateError{Errors: v.errs}
	}
	return nil
}

type validation struct {
	desc  *domain.TreeDescription
	kinds Kinds
	index map[string]int
	errs  []error
}

func (v *validation) fail(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validation) header() {
	if v.desc.ID == "" {
		v.fail("tree missing ID")
	}
	if v.desc.Root == "" {
		v.fail("tree %q has no root", v.desc.ID)
	}
}

func (v *validation) nodes() {
	for i, n := range v.desc.Nodes {
		if n.ID == "" {
			v.fail("node %d missing ID", i)
			continue
		}
		if _, dup := v.index[n.ID]; dup {
			v.fail("node %q declared twice", n.ID)
			continue
		}
		v.index[n.ID] = i

		k, ok := v.kinds.Kind(n.Kind)
		if !ok {
			v.fail("node %q: %w: %s", n.ID, domain.ErrUnknownKind, n.Kind)
			continue
		}
		if k.MaxChildren != tree.Unlimited && len(n.Children) > k.MaxChildren {
			v.fail("node %q (%s) accepts at most %d children, has %d", n.ID, n.Kind, k.MaxChildren, len(n.Children))
		}
		if len(n.Conditions) > 0 && !k.Conditions {
			v.fail("node %q (%s) does not evaluate conditions", n.ID, n.Kind)
		}
		for _, c := range n.Conditions {
			if !v.kinds.HasCondition(c.Kind) {
				v.fail("node %q: condition %w: %s", n.ID, domain.ErrUnknownKind, c.Kind)
			}
		}
	}
	if _, ok := v.index[v.desc.Root]; v.desc.Root != "" && !ok {
		v.fail("root %q is not declared", v.desc.Root)
	}
}

func (v *validation) links() {
	parents := make(map[string][]string)
	for _, n := range v.desc.Nodes {
		for _, c := range n.Children {
			if _, ok := v.index[c]; !ok {
				v.fail("node %q: child %q is not declared", n.ID, c)
				continue
			}
			if slices.Contains(parents[c], n.ID) {
				v.fail("node %q lists child %q twice", n.ID, c)
				continue
			}
			parents[c] = append(parents[c], n.ID)
		}
	}
	for _, n := range v.desc.Nodes {
		if len(parents[n.ID]) < 2 {
			continue
		}
		if k, ok := v.kinds.Kind(n.Kind); ok && !k.Join {
			v.fail("node %q (%s) has parents %v but is not a join", n.ID, n.Kind, parents[n.ID])
		}
	}
	if ps := parents[v.desc.Root]; len(ps) > 0 {
		v.fail("root %q is a child of %v", v.desc.Root, ps)
	}
}

// crawl walks the tree from the root, reporting cycles and nodes that can never run.
func (v *validation) crawl() {
	root, ok := v.index[v.desc.Root]
	if !ok {
		return
	}
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(v.desc.Nodes))
	var visit func(i int)
	visit = func(i int) {
		state[i] = visiting
		for _, c := range v.desc.Nodes[i].Children {
			j, ok := v.index[c]
			if !ok {
				continue
			}
			switch state[j] {
			case visiting:
				v.fail("cycle: node %q leads back to %q", v.desc.Nodes[i].ID, c)
			case unvisited:
				visit(j)
			}
		}
		state[i] = done
	}
	visit(root)

	for i, n := range v.desc.Nodes {
		if state[i] == unvisited && n.ID != "" && v.index[n.ID] == i {
			v.fail("node %q is unreachable from root %q", n.ID, v.desc.Root)
		}
	}
}

func (v *validation) variables() {
	seen := make(map[string]bool)
	for _, vd := range v.desc.Blackboard {
		if vd.Name == "" {
			v.fail("variable missing name")
			continue
		}
		if seen[vd.Name] {
			v.fail("variable %q declared twice", vd.Name)
		}
		seen[vd.Name] = true

		if vd.GUID != "" {
			if _, err := uuid.Parse(vd.GUID); err != nil {
				v.fail("variable %q: invalid guid %q", vd.Name, vd.GUID)
			}
		}
		members, isEnum := v.desc.Enums[vd.Type]
		switch {
		case isEnum:
			if s, ok := vd.Value.(string); ok && s != "" && !slices.Contains(members, s) {
				v.fail("variable %q: %q is not a member of %s", vd.Name, s, vd.Type)
			}
		case !domain.IsBuiltinType(vd.Type):
			v.fail("variable %q: unknown type %q", vd.Name, vd.Type)
		}
	}
}
