package dsl

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_SimpleTree(t *testing.T) {
	b := New("guard").
		Variable("Health", domain.TypeInt, 100).
		Shared("Alarm", domain.TypeBool, false).
		Enum("Mood", "Idle", "Angry")

	b.Add("main", "selector").Children("flee", "patrol").
		Add("flee", "guard").Children("run").Compare("Health", "<", 30).
		Add("run", "set_variable").Set("target", "Alarm").Set("value", true).
		Add("patrol", "wait_frames").Set("frames", 10)

	desc, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "guard", desc.ID)
	assert.Equal(t, "main", desc.Root, "first node is the root by default")
	require.Len(t, desc.Nodes, 4)
	assert.Equal(t, []string{"main", "flee", "run", "patrol"}, []string{desc.Nodes[0].ID, desc.Nodes[1].ID, desc.Nodes[2].ID, desc.Nodes[3].ID})

	flee, ok := desc.Node("flee")
	require.True(t, ok)
	require.Len(t, flee.Conditions, 1)
	assert.Equal(t, "compare", flee.Conditions[0].Kind)
	assert.Equal(t, "<", flee.Conditions[0].Properties["operator"])

	require.Len(t, desc.Blackboard, 2)
	assert.True(t, desc.Blackboard[1].Shared)
	assert.Equal(t, []string{"Idle", "Angry"}, desc.Enums["Mood"])
}

func TestBuilder_AddReturnsExisting(t *testing.T) {
	b := New("t")
	first := b.Add("a", "sequence")
	again := b.Add("a", "selector")
	assert.Same(t, first, again)
	assert.Equal(t, "sequence", again.Build().Kind)
}

func TestBuilder_ExplicitRoot(t *testing.T) {
	b := New("t")
	b.Add("leaf", "log").Set("message", "hi")
	b.Add("main", "sequence").Children("leaf")
	b.Root("main")

	desc, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "main", desc.Root)
}

func TestBuilder_Errors(t *testing.T) {
	_, err := New("").Build()
	assert.Error(t, err)

	_, err = New("empty").Build()
	assert.ErrorContains(t, err, "has no nodes")
}

func TestBuilder_Loader(t *testing.T) {
	sub := New("patrol")
	sub.Add("walk", "wait_frames").Set("frames", 2)
	subDesc, err := sub.Build()
	require.NoError(t, err)

	b := New("main")
	b.Add("run", "run_subgraph").Set("subgraph", "patrol")
	loader, err := b.Loader(*subDesc)
	require.NoError(t, err)

	ids, err := loader.ListTrees()
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "patrol"}, ids)

	raw, err := loader.GetTree("patrol")
	require.NoError(t, err)
	var got domain.TreeDescription
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "walk", got.Root)
	assert.EqualValues(t, 2, got.Nodes[0].Properties["frames"])
}
