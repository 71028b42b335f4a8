package tree_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/event"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter is a stateful Running leaf counting its updates.
type counter struct {
	tree.Action
	count        int
	serialized   int
	deserialized int
}

func (c *counter) OnStart() domain.Status  { return domain.StatusRunning }
func (c *counter) OnUpdate() domain.Status { c.count++; return domain.StatusRunning }
func (c *counter) OnEnd()                  {}

func (c *counter) OnSerialize() map[string]any {
	c.serialized++
	return map[string]any{"count": c.count}
}

func (c *counter) OnDeserialize(data map[string]any) error {
	c.deserialized++
	if n, ok := data["count"].(int); ok {
		c.count = n
	}
	return nil
}

func build(t *testing.T) (*tree.Graph, *counter, *blackboard.Variable[int]) {
	t.Helper()
	bb := blackboard.New("t")
	ammo := blackboard.NewVariable("Ammo", 3)
	ch, err := event.NewChannel("Alerts")
	require.NoError(t, err)
	require.NoError(t, bb.Add(ammo))
	require.NoError(t, bb.Add(blackboard.NewVariable("Alerts", ch)))

	g := tree.New("t", tree.WithBlackboard(bb))
	c := &counter{}
	require.NoError(t, g.SetRoot(g.Add("count", "counter", c)))
	return g, c, ammo
}

func TestSnapshot_RoundTrip(t *testing.T) {
	g, c, ammo := build(t)
	ctx := context.Background()
	g.Tick(ctx)
	g.Tick(ctx)
	g.Tick(ctx)
	ammo.SetValue(1)

	st := g.Snapshot()
	assert.Equal(t, 1, c.serialized)
	assert.Equal(t, domain.StatusRunning, st.Status)
	require.Len(t, st.Nodes, 1)
	assert.Equal(t, map[string]any{"count": 2}, st.Nodes[0].Data)
	require.Len(t, st.Variables, 1, "channels are not persisted")
	assert.Equal(t, "Ammo", st.Variables[0].Name)

	restored, rc, rammo := build(t)
	require.NoError(t, restored.Restore(st))
	assert.Equal(t, 1, rc.deserialized)
	assert.Equal(t, 2, rc.count)
	assert.Equal(t, 1, rammo.Value())
	assert.Equal(t, domain.StatusRunning, restored.Status())

	restored.Tick(ctx)
	assert.Equal(t, 3, rc.count, "running nodes resume without restarting")
}

func TestRestore_Mismatch(t *testing.T) {
	g, _, _ := build(t)
	other := tree.New("other")
	require.NoError(t, other.SetRoot(other.Add("different", "counter", &counter{})))

	err := g.Restore(other.Snapshot())
	assert.ErrorIs(t, err, domain.ErrStateMismatch)
	assert.ErrorIs(t, g.Restore(nil), domain.ErrStateMismatch)
}

func TestEvaluateConditions(t *testing.T) {
	yes, no := constCond(true), constCond(false)
	tests := []struct {
		name       string
		conds      []tree.Condition
		requireAll bool
		want       bool
	}{
		{"empty all", nil, true, true},
		{"empty any", nil, false, true},
		{"all true", []tree.Condition{yes, yes}, true, true},
		{"all mixed", []tree.Condition{yes, no}, true, false},
		{"any mixed", []tree.Condition{no, yes}, false, true},
		{"any false", []tree.Condition{no, no}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tree.EvaluateConditions(tt.conds, tt.requireAll))
		})
	}
}

type constCond bool

func (c constCond) OnStart()     {}
func (c constCond) IsTrue() bool { return bool(c) }
func (c constCond) OnEnd()       {}
