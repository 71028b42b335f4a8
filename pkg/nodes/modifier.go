package nodes

import (
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
)

func startChild(b *tree.Base) domain.Status {
	c := b.Child()
	if c == nil {
		return fail(b, "node has no child")
	}
	return b.Graph().StartNode(c)
}

func childStatus(b *tree.Base) domain.Status {
	c := b.Child()
	if c == nil {
		return domain.StatusFailure
	}
	return c.NodeBase().Status()
}

// Inverter swaps the Success and Failure of its child.
type Inverter struct{ tree.Modifier }

func (n *Inverter) OnStart() domain.Status  { return invert(startChild(&n.Base)) }
func (n *Inverter) OnUpdate() domain.Status { return invert(childStatus(&n.Base)) }
func (n *Inverter) OnEnd()                  {}

func invert(s domain.Status) domain.Status {
	switch s {
	case domain.StatusSuccess:
		return domain.StatusFailure
	case domain.StatusFailure:
		return domain.StatusSuccess
	}
	return domain.StatusWaiting
}

// Succeeder reports Success whatever its child returns.
type Succeeder struct{ tree.Modifier }

func (n *Succeeder) OnStart() domain.Status  { return force(startChild(&n.Base), domain.StatusSuccess) }
func (n *Succeeder) OnUpdate() domain.Status { return force(childStatus(&n.Base), domain.StatusSuccess) }
func (n *Succeeder) OnEnd()                  {}

// Failer reports Failure whatever its child returns.
type Failer struct{ tree.Modifier }

func (n *Failer) OnStart() domain.Status  { return force(startChild(&n.Base), domain.StatusFailure) }
func (n *Failer) OnUpdate() domain.Status { return force(childStatus(&n.Base), domain.StatusFailure) }
func (n *Failer) OnEnd()                  {}

func force(s, result domain.Status) domain.Status {
	if s.IsTerminal() {
		return result
	}
	return domain.StatusWaiting
}

// Repeat restarts its child each time it completes.
//
// A child completing within its own start is restarted on the next tick, so a
// loop never spins inside a single tick.
type Repeat struct {
	tree.Modifier
	// Count is the number of iterations; zero repeats forever.
	Count int
	// Until stops the loop with Success when the child reports it.
	// Uninitialized disables it. Combined with Count, running out of
	// iterations first is a Failure.
	Until domain.Status

	done int
}

func (r *Repeat) OnStart() domain.Status {
	r.done = 0
	if r.Child() == nil {
		return fail(&r.Base, "repeat has no child")
	}
	return r.step(startChild(&r.Base))
}

func (r *Repeat) OnUpdate() domain.Status {
	return r.step(childStatus(&r.Base))
}

func (r *Repeat) step(s domain.Status) domain.Status {
	if !s.IsTerminal() {
		return domain.StatusWaiting
	}
	if r.Until.IsTerminal() && s == r.Until {
		return domain.StatusSuccess
	}
	r.done++
	if r.Count > 0 && r.done >= r.Count {
		if r.Until.IsTerminal() {
			return domain.StatusFailure
		}
		return domain.StatusSuccess
	}
	c := r.Child()
	r.Graph().ResetStatus(c)
	if r.Graph().StartNode(c).IsTerminal() {
		return domain.StatusRunning
	}
	return domain.StatusWaiting
}

func (r *Repeat) OnEnd() {}

// Iterations returns the number of completed iterations of the current run.
func (r *Repeat) Iterations() int { return r.done }

func (r *Repeat) OnSerialize() map[string]any {
	return map[string]any{"done": r.done}
}

func (r *Repeat) OnDeserialize(data map[string]any) error {
	var st struct {
		Done int `json:"done"`
	}
	if err := decodeState(data, &st); err != nil {
		return err
	}
	r.done = st.Done
	return nil
}

// Guard runs its child while its conditions hold. Conditions are checked every
// tick; when they stop holding the child is aborted and the guard fails.
type Guard struct {
	tree.Modifier
	Conditions            []tree.Condition
	RequiresAllConditions bool
}

func (g *Guard) OnStart() domain.Status {
	tree.StartConditions(g.Conditions)
	if !tree.EvaluateConditions(g.Conditions, g.RequiresAllConditions) {
		return domain.StatusFailure
	}
	if s := startChild(&g.Base); s.IsTerminal() {
		return s
	}
	return domain.StatusRunning
}

func (g *Guard) OnUpdate() domain.Status {
	if !tree.EvaluateConditions(g.Conditions, g.RequiresAllConditions) {
		if c := g.Child(); c != nil {
			g.Graph().EndNode(c)
		}
		return domain.StatusFailure
	}
	if s := childStatus(&g.Base); s.IsTerminal() {
		return s
	}
	return domain.StatusRunning
}

func (g *Guard) OnEnd() {
	tree.EndConditions(g.Conditions)
}

func (g *Guard) OnSerialize() map[string]any {
	if conds := tree.SerializeConditions(g.Conditions); conds != nil {
		return map[string]any{"conditions": conds}
	}
	return nil
}

func (g *Guard) OnDeserialize(data map[string]any) error {
	if g.Status().IsInProgress() {
		tree.StartConditions(g.Conditions)
	}
	return tree.DeserializeConditions(g.Conditions, data["conditions"])
}

// Cooldown fails immediately when started within Frames frames of its child's
// last completion.
type Cooldown struct {
	tree.Modifier
	Frames uint64

	readyAt uint64
}

func (c *Cooldown) OnStart() domain.Status {
	if c.Clock().Frame() < c.readyAt {
		return domain.StatusFailure
	}
	return c.finish(startChild(&c.Base))
}

func (c *Cooldown) OnUpdate() domain.Status {
	return c.finish(childStatus(&c.Base))
}

func (c *Cooldown) finish(s domain.Status) domain.Status {
	if !s.IsTerminal() {
		return domain.StatusWaiting
	}
	c.readyAt = c.Clock().Frame() + c.Frames
	return s
}

func (c *Cooldown) OnEnd() {}

// Frame counters do not survive a save/load boundary; the remaining
// cooldown does.
func (c *Cooldown) OnSerialize() map[string]any {
	return map[string]any{"remaining": remainingFrames(c.Clock(), c.readyAt)}
}

func (c *Cooldown) OnDeserialize(data map[string]any) error {
	var st struct {
		Remaining uint64 `json:"remaining"`
	}
	if err := decodeState(data, &st); err != nil {
		return err
	}
	c.readyAt = 0
	if st.Remaining > 0 {
		c.readyAt = c.Clock().Frame() + st.Remaining
	}
	return nil
}

func remainingFrames(clock tree.Clock, target uint64) uint64 {
	if now := clock.Frame(); target > now {
		return target - now
	}
	return 0
}
