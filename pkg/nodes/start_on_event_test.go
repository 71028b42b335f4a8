package nodes_test

import (
	"testing"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/event"
	"github.com/aretw0/arbor/pkg/nodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventFixture struct {
	*fixture
	ch      event.Channel1[string]
	target  *blackboard.Variable[string]
	child   *leaf
	node    *nodes.StartOnEvent
	notices int
}

func newEventFixture(t *testing.T, mode nodes.TriggerMode, child *leaf) *eventFixture {
	f := &eventFixture{
		fixture: newFixture(t),
		ch:      event.NewChannel1[string]("Orders"),
		target:  blackboard.NewVariable("Order", ""),
		child:   child,
	}
	f.target.OnValueChanged(func() { f.notices++ })
	f.node = &nodes.StartOnEvent{
		Channel: blackboard.NewVariable("Orders", f.ch),
		Targets: []blackboard.Cell{f.target},
		Mode:    mode,
	}
	f.root(f.add("on", f.node, f.add("child", child)))
	return f
}

func twoTicks() *leaf {
	l := newLeaf(running)
	l.updates = []domain.Status{running, success, running, success, running, success}
	return l
}

func TestStartOnEvent_Default(t *testing.T) {
	f := newEventFixture(t, nodes.TriggerDefault, twoTicks())

	assert.Equal(t, running, f.tick())
	assert.Equal(t, running, f.tick())
	assert.Equal(t, 0, f.child.starts, "idle until a message arrives")

	f.ch.Send("attack")
	assert.Equal(t, "", f.target.Value(), "written on dispatch")

	f.tick()
	assert.Equal(t, 1, f.child.starts)
	assert.Equal(t, "attack", f.target.Value())
	assert.Equal(t, 1, f.notices)

	f.ch.Send("ignored")
	assert.Equal(t, "attack", f.target.Value(), "busy: message dropped")
	for range 3 {
		f.tick()
	}
	assert.Equal(t, 1, f.child.starts)
	assert.Equal(t, running, f.node.Status(), "waits for the next message")
}

func TestStartOnEvent_Restart(t *testing.T) {
	f := newEventFixture(t, nodes.TriggerRestart, twoTicks())
	f.tick()
	f.ch.Send("a")
	f.tick()
	require.Equal(t, 1, f.child.starts)

	f.ch.Send("b")
	f.tick()
	assert.Equal(t, 2, f.child.starts)
	assert.Equal(t, 1, f.child.ends, "running child aborted")
	assert.Equal(t, "b", f.target.Value())
}

func TestStartOnEvent_Once(t *testing.T) {
	f := newEventFixture(t, nodes.TriggerOnce, newLeaf(failure))
	f.tick()
	f.ch.Send("only")
	f.ch.Send("second")
	assert.Equal(t, domain.StatusFailure, f.tick(), "completes with the child")
	assert.Equal(t, "only", f.target.Value())
	assert.Equal(t, 1, f.child.starts)
	assert.Equal(t, 0, f.ch.Listeners())
}

func TestStartOnEvent_Queue(t *testing.T) {
	f := newEventFixture(t, nodes.TriggerQueue, newLeaf(success))
	f.tick()

	f.ch.Send("first")
	f.ch.Send("second")
	assert.Equal(t, 2, f.node.Pending())
	assert.Equal(t, "", f.target.Value(), "queued payloads are not written on arrival")
	assert.Equal(t, 0, f.notices)

	f.tick()
	assert.Equal(t, "first", f.target.Value())
	assert.Equal(t, 1, f.notices, "notified when dispatched")

	f.tick()
	assert.Equal(t, "second", f.target.Value())
	assert.Equal(t, 2, f.notices)
	assert.Equal(t, 2, f.child.starts)
	assert.Equal(t, 0, f.node.Pending())
}

func TestStartOnEvent_ResubscribesAfterRestore(t *testing.T) {
	f := newEventFixture(t, nodes.TriggerQueue, newLeaf(success))
	f.tick()
	f.ch.Send("saved")
	st := f.g.Snapshot()

	g := newEventFixture(t, nodes.TriggerQueue, newLeaf(success))
	require.NoError(t, g.g.Restore(st))
	assert.Equal(t, 1, g.node.Pending())
	assert.Equal(t, 1, g.ch.Listeners())

	g.tick()
	assert.Equal(t, "saved", g.target.Value())
}

func TestStartOnEvent_Unassigned(t *testing.T) {
	f := newFixture(t)
	f.root(f.add("on", &nodes.StartOnEvent{Channel: blackboard.NewVariable[*event.Channel]("None", nil)},
		f.add("child", newLeaf())))
	assert.Equal(t, failure, f.tick())
}
