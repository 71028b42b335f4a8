package nodes_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/stretchr/testify/require"
)

// leaf is a scripted action. Start i returns results[i] (the last one repeats);
// a Running leaf then returns each of updates in turn, Running when exhausted.
type leaf struct {
	tree.Action
	results []domain.Status
	updates []domain.Status

	starts, updateCalls, ends int
}

func newLeaf(results ...domain.Status) *leaf {
	return &leaf{results: results}
}

func (l *leaf) OnStart() domain.Status {
	l.starts++
	if len(l.results) == 0 {
		return domain.StatusSuccess
	}
	i := l.starts - 1
	if i >= len(l.results) {
		i = len(l.results) - 1
	}
	return l.results[i]
}

func (l *leaf) OnUpdate() domain.Status {
	l.updateCalls++
	if len(l.updates) == 0 {
		return domain.StatusRunning
	}
	next := l.updates[0]
	l.updates = l.updates[1:]
	return next
}

func (l *leaf) OnEnd() { l.ends++ }

// fixture builds graphs with a manual clock and a captured log.
type fixture struct {
	t     *testing.T
	g     *tree.Graph
	clock *tree.FrameClock
	log   *bytes.Buffer
}

func newFixture(t *testing.T, opts ...tree.Option) *fixture {
	t.Helper()
	f := &fixture{t: t, clock: tree.NewFrameClock(0), log: &bytes.Buffer{}}
	logger := slog.New(slog.NewTextHandler(f.log, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts = append([]tree.Option{tree.WithClock(f.clock), tree.WithLogger(logger)}, opts...)
	f.g = tree.New("test", opts...)
	return f
}

// add registers n and links the given children under it.
func (f *fixture) add(id string, n tree.Node, children ...tree.Handle) tree.Handle {
	f.t.Helper()
	h := f.g.Add(id, id, n)
	for _, c := range children {
		require.NoError(f.t, f.g.Link(h, c))
	}
	return h
}

func (f *fixture) root(h tree.Handle) *fixture {
	f.t.Helper()
	require.NoError(f.t, f.g.SetRoot(h))
	return f
}

// tick advances the clock after ticking, as a driver does between frames.
func (f *fixture) tick() domain.Status {
	s := f.g.Tick(f.t.Context())
	f.clock.Advance()
	return s
}
