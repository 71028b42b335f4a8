package tree

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/google/uuid"
)

var sourceType = reflect.TypeFor[Source]()

// Snapshot captures statuses, node state and variable values.
// Variables holding transient values (event channels) or assets are skipped.
func (g *Graph) Snapshot() *domain.TreeState {
	st := domain.NewTreeState("", g.sourceID)
	st.Frame = g.clock.Frame()
	st.Status = g.Status()
	st.SavedAt = time.Now()

	for _, n := range g.nodes {
		b := n.NodeBase()
		ns := domain.NodeState{ID: b.id, Status: b.status}
		if s, ok := n.(Stateful); ok {
			ns.Data = g.callSerialize(n, s)
		}
		st.Nodes = append(st.Nodes, ns)
	}
	for _, c := range g.blackboard.Variables() {
		if blackboard.IsTransient(c) || c.Type() == sourceType {
			continue
		}
		st.Variables = append(st.Variables, domain.VariableState{
			GUID:  c.GUID().String(),
			Name:  c.Name(),
			Value: c.ObjectValue(),
		})
	}
	return st
}

// Restore loads a snapshot taken from an instance of the same description.
// The clock must already be positioned at the frame the tree resumes on.
func (g *Graph) Restore(st *domain.TreeState) error {
	if st == nil {
		return fmt.Errorf("restore: %w: nil state", domain.ErrStateMismatch)
	}
	if len(st.Nodes) != len(g.nodes) {
		return fmt.Errorf("restore: %w: %d nodes saved, tree has %d", domain.ErrStateMismatch, len(st.Nodes), len(g.nodes))
	}
	for i, n := range g.nodes {
		if id := n.NodeBase().id; st.Nodes[i].ID != id {
			return fmt.Errorf("restore: %w: node %d is %q, saved %q", domain.ErrStateMismatch, i, id, st.Nodes[i].ID)
		}
	}

	var errs []error
	for _, vs := range st.Variables {
		c, ok := g.findCell(vs)
		if !ok {
			g.logger.Warn("saved variable not found", "tree", g.id, "variable", vs.Name, "guid", vs.GUID)
			continue
		}
		if err := c.RestoreValue(vs.Value); err != nil {
			errs = append(errs, err)
		}
	}

	g.active = g.active[:0]
	for h, n := range g.nodes {
		b := n.NodeBase()
		b.status = st.Nodes[h].Status
		b.ended = b.status.IsTerminal()
		g.isActive[h] = false
		if b.status == domain.StatusRunning {
			g.activate(Handle(h))
		}
	}
	for h, n := range g.nodes {
		s, ok := n.(Stateful)
		if !ok {
			continue
		}
		data := st.Nodes[h].Data
		if data == nil {
			data = map[string]any{}
		}
		if err := g.callDeserialize(n, s, data); err != nil {
			errs = append(errs, fmt.Errorf("node %q: %w", n.NodeBase().id, err))
		}
	}
	return errors.Join(errs...)
}

func (g *Graph) findCell(vs domain.VariableState) (blackboard.Cell, bool) {
	if id, err := uuid.Parse(vs.GUID); err == nil {
		if c, ok := g.blackboard.Lookup(id); ok {
			return c, true
		}
	}
	return g.blackboard.LookupName(vs.Name)
}

func (g *Graph) callSerialize(n Node, s Stateful) (data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			n.NodeBase().Logger().Error("node panicked", "phase", "serialize", "err", fmt.Errorf("%v", r))
			data = nil
		}
	}()
	return s.OnSerialize()
}

func (g *Graph) callDeserialize(n Node, s Stateful, data map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deserialize panicked: %v", r)
		}
	}()
	return s.OnDeserialize(data)
}
