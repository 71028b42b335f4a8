package arbor_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/nodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guardYAML = `
id: guard
root: main
blackboard:
  - {name: Done, type: bool}
  - {name: Spotted, type: channel}
nodes:
  - {id: main, kind: sequence, children: [wait, finish]}
  - {id: wait, kind: wait_frames, properties: {frames: 2}}
  - {id: finish, kind: set_variable, properties: {target: Done, value: true}}
`

const idleYAML = `
id: idle
root: rest
nodes:
  - {id: rest, kind: wait_frames, properties: {frames: 1}}
`

func newEngine(t *testing.T, opts ...arbor.Option) *arbor.Engine {
	t.Helper()
	loader := memory.NewLoader(map[string]string{"guard": guardYAML, "idle": idleYAML})
	return arbor.New(append([]arbor.Option{arbor.WithLoader(loader)}, opts...)...)
}

func TestAgent_RunsToCompletion(t *testing.T) {
	eng := newEngine(t)
	a, err := eng.NewAgent("guard")
	require.NoError(t, err)
	assert.NotEmpty(t, a.SessionID())

	ctx := context.Background()
	assert.Equal(t, domain.StatusWaiting, a.Tick(ctx))
	assert.Equal(t, domain.StatusWaiting, a.Tick(ctx))
	assert.Equal(t, domain.StatusSuccess, a.Tick(ctx))
	assert.Equal(t, uint64(3), a.Frame())

	done, ok := a.Get("Done")
	require.True(t, ok)
	assert.Equal(t, true, done)

	// A completed root is left alone until restarted.
	assert.Equal(t, domain.StatusSuccess, a.Tick(ctx))
	a.Restart()
	assert.Equal(t, domain.StatusWaiting, a.Tick(ctx))
}

func TestAgent_DefaultChannels(t *testing.T) {
	a, err := newEngine(t).NewAgent("guard")
	require.NoError(t, err)

	ch, ok := a.Channel("Spotted")
	require.True(t, ok, "unassigned channel variables receive a default channel")
	assert.Equal(t, "Spotted", ch.Name())

	_, ok = a.Channel("Done")
	assert.False(t, ok)
	_, ok = a.Channel("Nope")
	assert.False(t, ok)
}

func TestAgent_SetAndGet(t *testing.T) {
	a, err := newEngine(t).NewAgent("guard")
	require.NoError(t, err)

	require.NoError(t, a.Set("Done", true))
	v, _ := a.Get("Done")
	assert.Equal(t, true, v)

	assert.ErrorIs(t, a.Set("Done", "yes"), domain.ErrTypeMismatch)

	err = a.Set("Ghost", 1)
	assert.ErrorIs(t, err, domain.ErrUnknownVariable)
	var unknown *arbor.UnknownVariableError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Ghost", unknown.Name)
}

func TestAgent_SaveAndResume(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	a, err := eng.NewAgent("guard")
	require.NoError(t, err)
	a.Tick(ctx)
	require.NoError(t, a.Save(ctx))
	a.Close()

	resumed, err := eng.Resume(ctx, a.SessionID())
	require.NoError(t, err)
	assert.Equal(t, "guard", resumed.TreeID())
	assert.Equal(t, uint64(1), resumed.Frame())
	assert.Equal(t, domain.StatusWaiting, resumed.Status())

	assert.Equal(t, domain.StatusWaiting, resumed.Tick(ctx))
	assert.Equal(t, domain.StatusSuccess, resumed.Tick(ctx), "the wait resumes where it stopped")

	_, err = eng.Resume(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_Runtime(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	var statuses []domain.Status
	for range 3 {
		st, err := eng.Tick(ctx, "s1", "guard")
		require.NoError(t, err)
		assert.Equal(t, "s1", st.SessionID)
		statuses = append(statuses, st.Status)
	}
	assert.Equal(t, []domain.Status{domain.StatusWaiting, domain.StatusWaiting, domain.StatusSuccess}, statuses)

	// Later ticks may omit the tree.
	st, err := eng.Tick(ctx, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), st.Frame)

	st, err = eng.State(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "guard", st.TreeID)

	views, err := eng.Inspect(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "main", views[0].ID)
	assert.Equal(t, []string{"wait", "finish"}, views[0].Children)
	assert.Equal(t, domain.StatusSuccess, views[2].Status)

	_, err = eng.Tick(ctx, "s1", "idle")
	assert.ErrorIs(t, err, domain.ErrStateMismatch)

	_, err = eng.Tick(ctx, "s2", "nowhere")
	assert.ErrorIs(t, err, domain.ErrTreeNotFound)
	_, err = eng.Tick(ctx, "s3", "")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	ids, err := eng.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids, "failed ticks store nothing")

	require.NoError(t, eng.Delete(ctx, "s1"))
	require.NoError(t, eng.Delete(ctx, "s1"))
	_, err = eng.State(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_HooksAndActions(t *testing.T) {
	var ticks, ends int
	calls := 0
	hooks := domain.LifecycleHooks{
		OnTick:    func(context.Context, *domain.TickEvent) { ticks++ },
		OnNodeEnd: func(context.Context, *domain.NodeEvent) { ends++ },
	}

	b := dsl.New("shout")
	b.Add("main", "call_action").Set("action", "yell").Set("args", map[string]any{"volume": 11})
	desc, err := b.Build()
	require.NoError(t, err)

	eng := arbor.New(
		arbor.WithLifecycleHooks(hooks),
		arbor.WithAction("yell", func(_ context.Context, call nodes.ActionCall) (domain.Status, error) {
			calls++
			assert.Equal(t, 11, call.Args["volume"])
			if call.First {
				return domain.StatusRunning, nil
			}
			return domain.StatusSuccess, nil
		}),
	)
	require.NoError(t, eng.Compile(desc))

	a, err := eng.NewAgent("shout")
	require.NoError(t, err)
	status, err := (&arbor.Runner{MaxFrames: 5}).Run(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, status)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, ticks)
	assert.Equal(t, 1, ends)
}

func TestEngine_ValidateAndDescribe(t *testing.T) {
	eng := newEngine(t)
	require.NoError(t, eng.Validate("guard"))

	desc, err := eng.Description("idle")
	require.NoError(t, err)
	assert.Equal(t, "rest", desc.Root)

	assert.ErrorIs(t, eng.Validate("nowhere"), domain.ErrTreeNotFound)

	id, err := eng.CompileBytes([]byte(`{"id": "inline", "root": "a", "nodes": [{"id": "a", "kind": "log"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "inline", id)

	_, err = eng.CompileBytes([]byte("id: broken\nroot: a\nnodes: [{id: a, kind: fly}]"))
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}

func TestEngine_WatchReloadsBetweenTicks(t *testing.T) {
	loader := memory.NewLoader(map[string]string{"idle": idleYAML})
	eng := arbor.New(arbor.WithLoader(loader))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, eng.Watch(ctx))

	_, err := eng.Description("idle")
	require.NoError(t, err)
	loader.Set("idle", []byte(strings.Replace(idleYAML, "frames: 1", "frames: 4", 1)))

	require.Eventually(t, func() bool {
		a, err := eng.NewAgent("idle")
		if err != nil {
			return false
		}
		a.Tick(ctx) // applies pending reloads
		desc, _ := eng.Description("idle")
		return desc.Nodes[0].Properties["frames"] == 4
	}, time.Second, 10*time.Millisecond)

	assert.Error(t, arbor.New().Watch(ctx), "no loader")
}

func TestRunner(t *testing.T) {
	t.Run("StopsOnTerminalStatus", func(t *testing.T) {
		a, err := newEngine(t).NewAgent("guard")
		require.NoError(t, err)
		var seen []uint64
		r := &arbor.Runner{OnTick: func(a *arbor.Agent, _ domain.Status) { seen = append(seen, a.Frame()) }}
		status, err := r.Run(context.Background(), a)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSuccess, status)
		assert.Equal(t, []uint64{1, 2, 3}, seen)
	})

	t.Run("LoopsUntilMaxFrames", func(t *testing.T) {
		a, err := newEngine(t).NewAgent("idle")
		require.NoError(t, err)
		completions := 0
		r := &arbor.Runner{MaxFrames: 6, Loop: true, OnTick: func(_ *arbor.Agent, s domain.Status) {
			if s == domain.StatusSuccess {
				completions++
			}
		}}
		_, err = r.Run(context.Background(), a)
		require.NoError(t, err)
		assert.Equal(t, uint64(6), a.Frame())
		assert.Equal(t, 3, completions)
	})

	t.Run("SavesEveryFrame", func(t *testing.T) {
		eng := newEngine(t)
		a, err := eng.NewAgent("guard")
		require.NoError(t, err)
		_, err = (&arbor.Runner{MaxFrames: 2, Save: true}).Run(context.Background(), a)
		require.NoError(t, err)
		st, err := eng.State(context.Background(), a.SessionID())
		require.NoError(t, err)
		assert.Equal(t, uint64(2), st.Frame)
	})

	t.Run("CommandsAndQuit", func(t *testing.T) {
		a, err := newEngine(t).NewAgent("idle")
		require.NoError(t, err)
		var out strings.Builder
		r := &arbor.Runner{
			Input:    strings.NewReader("Ghost 1\nSpotted extra\nquit\n"),
			Output:   &out,
			Loop:     true,
			Interval: 5 * time.Millisecond,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err = r.Run(ctx, a)
		require.NoError(t, err, "quit stops the loop before the timeout")
		assert.Contains(t, out.String(), "send Ghost: unknown variable Ghost")
	})

	t.Run("ContextCancel", func(t *testing.T) {
		a, err := newEngine(t).NewAgent("idle")
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = (&arbor.Runner{Loop: true}).Run(ctx, a)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEngine_Open(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	a, err := eng.Open(ctx, "hero", "guard")
	require.NoError(t, err)
	assert.Equal(t, "hero", a.SessionID())
	a.Tick(ctx)
	require.NoError(t, a.Save(ctx))

	again, err := eng.Open(ctx, "hero", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), again.Frame())

	_, err = eng.Open(ctx, "hero", "idle")
	assert.ErrorIs(t, err, domain.ErrStateMismatch)

	anon, err := eng.Open(ctx, "", "idle")
	require.NoError(t, err)
	assert.NotEmpty(t, anon.SessionID())
}
