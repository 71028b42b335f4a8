package compiler

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"time"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/event"
	"github.com/aretw0/arbor/pkg/nodes"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/google/uuid"
)

// builder resolves references for the factories of one instance.
type builder struct {
	c      *Compiler
	bb     *blackboard.Blackboard
	enums  *blackboard.EnumRegistry
	logger *slog.Logger
}

func (b *builder) Blackboard() *blackboard.Blackboard { return b.bb }
func (b *builder) Enums() *blackboard.EnumRegistry    { return b.enums }
func (b *builder) Logger() *slog.Logger               { return b.logger }

func (b *builder) Subgraph(id string) (tree.Source, error) {
	return b.c.Load(id)
}

func (b *builder) Action(name string) (nodes.ActionFunc, bool) {
	return b.c.registry.Action(name)
}

func (c *Compiler) build(desc *domain.TreeDescription, enums *blackboard.EnumRegistry, host *tree.Graph, opts ...tree.Option) (*tree.Graph, error) {
	id := fmt.Sprintf("%s#%s", desc.ID, uuid.NewString()[:8])
	logger := c.logger
	if host != nil {
		logger = host.Logger()
	}

	bb := blackboard.New(id)
	for _, vd := range desc.Blackboard {
		cell, err := c.variable(desc, enums, vd)
		if err == nil {
			err = bb.Add(cell)
		}
		if err != nil {
			bb.Dispose()
			return nil, fmt.Errorf("tree %s: variable %q: %w", desc.ID, vd.Name, err)
		}
	}

	base := []tree.Option{tree.WithSource(desc.ID), tree.WithBlackboard(bb)}
	if host != nil {
		base = append(base, tree.WithHost(host))
	} else {
		base = append(base, tree.WithLogger(logger))
	}
	g := tree.New(id, append(base, opts...)...)

	b := &builder{c: c, bb: bb, enums: enums, logger: logger}
	if err := c.populate(g, b, desc); err != nil {
		bb.Dispose()
		return nil, fmt.Errorf("tree %s: %w", desc.ID, err)
	}
	return g, nil
}

func (c *Compiler) populate(g *tree.Graph, b *builder, desc *domain.TreeDescription) error {
	handles := make(map[string]tree.Handle, len(desc.Nodes))
	for _, nd := range desc.Nodes {
		conds := make([]tree.Condition, 0, len(nd.Conditions))
		for _, cd := range nd.Conditions {
			cond, err := c.registry.BuildCondition(b, cd)
			if err != nil {
				return fmt.Errorf("node %q: %w", nd.ID, err)
			}
			conds = append(conds, cond)
		}
		n, err := c.registry.Build(b, registry.Spec{
			ID:         nd.ID,
			Kind:       nd.Kind,
			Properties: nd.Properties,
			Conditions: conds,
		})
		if err != nil {
			return err
		}
		handles[nd.ID] = g.Add(nd.ID, nd.Kind, n)
	}
	for _, nd := range desc.Nodes {
		for _, child := range nd.Children {
			h, ok := handles[child]
			if !ok {
				return fmt.Errorf("node %q: child %q is not declared", nd.ID, child)
			}
			if err := g.Link(handles[nd.ID], h); err != nil {
				return err
			}
		}
	}
	root, ok := handles[desc.Root]
	if !ok {
		return fmt.Errorf("root %q is not declared", desc.Root)
	}
	return g.SetRoot(root)
}

// variable creates the cell declared by vd. Shared variables resolve to a
// duplicate of the canonical cell of the tree, created on first use.
func (c *Compiler) variable(desc *domain.TreeDescription, enums *blackboard.EnumRegistry, vd domain.VariableDescription) (blackboard.Cell, error) {
	guid := blackboard.DeriveGUID(desc.ID, vd.Name)
	if vd.GUID != "" {
		parsed, err := uuid.Parse(vd.GUID)
		if err != nil {
			return nil, fmt.Errorf("invalid guid: %w", err)
		}
		guid = parsed
	}
	opts := []blackboard.Option{blackboard.WithGUID(guid), blackboard.WithLogger(c.logger)}
	if !vd.Shared {
		return c.newCell(vd, enums, opts)
	}

	canonical := c.shared.Canonical(desc.ID)
	if cell, ok := canonical.Lookup(guid); ok {
		return cell.Duplicate(), nil
	}
	origin, err := c.newCell(vd, enums, append(opts, blackboard.Shared(canonical)))
	if err != nil {
		return nil, err
	}
	if err := canonical.Add(origin); err != nil {
		return nil, err
	}
	return origin.Duplicate(), nil
}

func (c *Compiler) newCell(vd domain.VariableDescription, enums *blackboard.EnumRegistry, opts []blackboard.Option) (blackboard.Cell, error) {
	switch vd.Type {
	case domain.TypeInt:
		return typed[int](vd, opts)
	case domain.TypeFloat:
		return typed[float64](vd, opts)
	case domain.TypeString:
		return typed[string](vd, opts)
	case domain.TypeBool:
		return typed[bool](vd, opts)
	case domain.TypeDuration:
		return typed[time.Duration](vd, opts)
	case domain.TypeChannel:
		return blackboard.NewVariable[*event.Channel](vd.Name, nil, opts...), nil
	case domain.TypeSubgraph:
		var src tree.Source
		if id, _ := vd.Value.(string); id != "" {
			a, err := c.Load(id)
			if err != nil {
				return nil, err
			}
			src = a
		}
		return blackboard.NewVariable(vd.Name, src, opts...), nil
	}

	members, ok := enums.Members(vd.Type)
	if !ok {
		return nil, fmt.Errorf("unknown type %q", vd.Type)
	}
	v, err := typed[string](vd, append(opts, blackboard.WithTypeName(vd.Type)))
	if err != nil {
		return nil, err
	}
	if v.Value() == "" && len(members) > 0 {
		v.SetValueWithoutNotify(members[0].(string))
	}
	if !slices.Contains(members, any(v.Value())) {
		return nil, fmt.Errorf("%w: %q is not a member of %s", domain.ErrTypeMismatch, v.Value(), vd.Type)
	}
	return v, nil
}

func typed[T any](vd domain.VariableDescription, opts []blackboard.Option) (*blackboard.Variable[T], error) {
	raw, err := registry.Coerce(reflect.TypeFor[T](), vd.Value)
	if err != nil {
		return nil, err
	}
	return blackboard.NewVariable(vd.Name, raw.(T), opts...), nil
}
