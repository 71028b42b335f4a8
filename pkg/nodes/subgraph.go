package nodes

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/event"
	"github.com/aretw0/arbor/pkg/tree"
)

var channelType = reflect.TypeFor[*event.Channel]()

// RunSubgraphDynamic instantiates a tree asset at runtime and ticks the
// instance root every update, completing with the root's result.
//
// On instancing, unassigned channel variables of the instance receive a
// default channel named after the variable, and each host variable in
// Overrides is matched against the instance blackboard (GUID first, then
// name and type). Matches that are not shared take the host value silently
// and stay bound in both directions until the node ends.
type RunSubgraphDynamic struct {
	tree.Action

	// Source is the asset run when Subgraph is nil.
	Source tree.Source
	// Subgraph selects the asset at runtime. Assigning it while the node runs
	// discards the instance; the next update instantiates the new asset.
	Subgraph  *blackboard.Variable[tree.Source]
	Overrides []blackboard.Cell
	Pool      *BindingPool

	instance  *tree.Graph
	current   tree.Source
	bindings  []*binding
	dirty     bool
	unwatch   func()
	unwatchSV func()
}

func (n *RunSubgraphDynamic) OnStart() domain.Status {
	n.watchVariable()
	if !n.instantiate() {
		return domain.StatusFailure
	}
	return n.tick()
}

func (n *RunSubgraphDynamic) OnUpdate() domain.Status {
	if n.dirty {
		n.Logger().Info("subgraph source changed, reinstantiating")
		n.teardown()
		if !n.instantiate() {
			return domain.StatusFailure
		}
	}
	if n.instance == nil {
		return fail(&n.Base, "subgraph has no instance")
	}
	return n.tick()
}

func (n *RunSubgraphDynamic) OnEnd() {
	n.teardown()
	if n.unwatchSV != nil {
		n.unwatchSV()
		n.unwatchSV = nil
	}
}

func (n *RunSubgraphDynamic) tick() domain.Status {
	if s := n.instance.Tick(n.Context()); s.IsTerminal() {
		return s
	}
	return domain.StatusRunning
}

// Instance returns the running instance, or nil.
func (n *RunSubgraphDynamic) Instance() *tree.Graph { return n.instance }

// Bindings returns the number of live override bindings.
func (n *RunSubgraphDynamic) Bindings() int { return len(n.bindings) }

func (n *RunSubgraphDynamic) source() tree.Source {
	if n.Subgraph != nil {
		return n.Subgraph.Value()
	}
	return n.Source
}

func (n *RunSubgraphDynamic) pool() *BindingPool {
	if n.Pool != nil {
		return n.Pool
	}
	return DefaultBindingPool
}

func (n *RunSubgraphDynamic) watchVariable() {
	if n.Subgraph == nil || n.unwatchSV != nil {
		return
	}
	n.unwatchSV = n.Subgraph.OnValueChanged(func() { n.dirty = true })
}

// instantiate validates the source and builds a bound instance. Problems are
// reported and leave the node without an instance.
func (n *RunSubgraphDynamic) instantiate() bool {
	n.dirty = false
	src := n.source()
	if src == nil {
		n.Logger().Error("subgraph source is not assigned")
		return false
	}
	if v, ok := src.(tree.SourceValidator); ok {
		if err := v.Validate(); err != nil {
			n.Logger().Error("subgraph is invalid", "subgraph", src.ID(), "err", err)
			return false
		}
	}
	if n.Graph().Executes(src.ID()) {
		n.Logger().Error("subgraph would run itself", "subgraph", src.ID(), "err", domain.ErrCycle)
		return false
	}
	inst, err := src.Instantiate(n.Graph())
	if err != nil {
		n.Logger().Error("subgraph instantiation failed", "subgraph", src.ID(), "err", err)
		return false
	}
	if inst == nil || inst.Root() == nil {
		n.Logger().Error("subgraph has no root", "subgraph", src.ID())
		return false
	}
	inst.SetOwner(n.Graph().Owner())
	n.instance, n.current = inst, src
	if w, ok := src.(tree.WatchableSource); ok {
		n.unwatch = w.OnChanged(func() { n.dirty = true })
	}
	AssignDefaultChannels(inst.Blackboard(), n.Logger())
	n.applyOverrides(inst.Blackboard())
	return true
}

// AssignDefaultChannels gives every channel variable of bb that holds no
// channel a fresh one named after the variable.
func AssignDefaultChannels(bb *blackboard.Blackboard, logger *slog.Logger) {
	for _, c := range bb.Variables() {
		if c.Type() != channelType {
			continue
		}
		if ch, _ := c.ObjectValue().(*event.Channel); ch != nil {
			continue
		}
		ch, err := event.NewChannel(c.Name())
		if err == nil {
			err = c.SetObjectValueWithoutNotify(ch)
		}
		if err != nil {
			logger.Error("default channel not assigned", "variable", c.Name(), "err", err)
		}
	}
}

func (n *RunSubgraphDynamic) applyOverrides(bb *blackboard.Blackboard) {
	for _, outer := range n.Overrides {
		if outer == nil {
			n.Logger().Error("override skipped", "err", domain.ErrNilBinding)
			continue
		}
		inner, ok := bb.Find(outer.GUID(), outer.Name(), outer.Type())
		if !ok {
			n.Logger().Debug("override has no match in subgraph", "variable", outer.Name())
			continue
		}
		if inner.IsShared() {
			continue
		}
		if err := inner.SetObjectValueWithoutNotify(outer.ObjectValue()); err != nil {
			continue
		}
		b := n.pool().get()
		if err := b.bind(outer, inner, n.Logger()); err != nil {
			n.Logger().Error("override not bound", "variable", outer.Name(), "err", err)
			n.pool().put(b)
			continue
		}
		n.bindings = append(n.bindings, b)
	}
}

// teardown releases bindings and ends the instance root.
func (n *RunSubgraphDynamic) teardown() {
	for _, b := range n.bindings {
		n.pool().put(b)
	}
	n.bindings = nil
	if n.unwatch != nil {
		n.unwatch()
		n.unwatch = nil
	}
	if n.instance != nil {
		if root := n.instance.Root(); root != nil {
			n.instance.EndNode(root)
		}
		n.instance.Blackboard().Dispose()
		n.instance = nil
	}
	n.current = nil
}

// OnSerialize nests the snapshot of the running instance.
func (n *RunSubgraphDynamic) OnSerialize() map[string]any {
	if n.instance == nil {
		return nil
	}
	return map[string]any{
		"subgraph": n.current.ID(),
		"instance": n.instance.Snapshot(),
	}
}

// OnDeserialize instantiates the source again and restores the nested snapshot.
func (n *RunSubgraphDynamic) OnDeserialize(data map[string]any) error {
	if !n.Status().IsInProgress() || data["instance"] == nil {
		return nil
	}
	var st struct {
		Subgraph string            `json:"subgraph"`
		Instance *domain.TreeState `json:"instance"`
	}
	if err := decodeState(data, &st); err != nil {
		return err
	}
	n.watchVariable()
	if !n.instantiate() {
		return fmt.Errorf("subgraph %q: instantiation failed", st.Subgraph)
	}
	if id := n.current.ID(); id != st.Subgraph {
		return fmt.Errorf("subgraph %q: %w: saved %q", id, domain.ErrStateMismatch, st.Subgraph)
	}
	return n.instance.Restore(st.Instance)
}
