package nodes

import (
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
)

// Join funnels several parents into one child. The first parent to arrive
// starts the child; later arrivals observe the same run.
type Join struct{ tree.Join }

func (j *Join) OnStart() domain.Status  { return progress(startChild(&j.Base)) }
func (j *Join) OnUpdate() domain.Status { return progress(childStatus(&j.Base)) }
func (j *Join) OnEnd()                  {}

// WaitForAll starts its child only once every parent has arrived.
type WaitForAll struct {
	tree.Join
	arrived int
}

func (w *WaitForAll) OnStart() domain.Status {
	w.arrived = 1
	return w.check()
}

func (w *WaitForAll) Rejoin() domain.Status {
	w.arrived++
	return w.check()
}

func (w *WaitForAll) OnUpdate() domain.Status { return w.check() }
func (w *WaitForAll) OnEnd()                  {}
func (w *WaitForAll) OnReset()                { w.arrived = 0 }

func (w *WaitForAll) check() domain.Status {
	c := w.Child()
	if c == nil {
		return fail(&w.Base, "join has no child")
	}
	if w.arrived < len(w.Parents()) {
		return domain.StatusWaiting
	}
	if c.NodeBase().Status() == domain.StatusUninitialized {
		return progress(w.Graph().StartNode(c))
	}
	return progress(c.NodeBase().Status())
}

func (w *WaitForAll) OnSerialize() map[string]any {
	return map[string]any{"arrived": w.arrived}
}

func (w *WaitForAll) OnDeserialize(data map[string]any) error {
	var st struct {
		Arrived int `json:"arrived"`
	}
	if err := decodeState(data, &st); err != nil {
		return err
	}
	w.arrived = st.Arrived
	return nil
}
