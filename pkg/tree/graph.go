package tree

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
)

var nopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Graph is one instance of a behavior tree: an arena of nodes plus the
// blackboard they read and write.
type Graph struct {
	id       string
	sourceID string
	owner    any
	host     *Graph

	nodes    []Node
	children [][]Handle
	parents  [][]Handle
	root     Handle

	// active holds Running nodes in activation order.
	active   []Handle
	isActive []bool
	// ticks counts calls to Tick.
	ticks uint64

	blackboard *blackboard.Blackboard
	clock      Clock
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	ctx        context.Context
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the diagnostics sink.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) { g.logger = logger }
}

// WithClock sets the time source polled by time-based leaves.
func WithClock(clock Clock) Option {
	return func(g *Graph) { g.clock = clock }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(g *Graph) { g.hooks = hooks }
}

// WithBlackboard sets the blackboard. A fresh one is created otherwise.
func WithBlackboard(bb *blackboard.Blackboard) Option {
	return func(g *Graph) { g.blackboard = bb }
}

// WithSource records the asset the graph was instantiated from; used for
// subgraph cycle detection.
func WithSource(id string) Option {
	return func(g *Graph) { g.sourceID = id }
}

// WithOwner binds the graph to the agent (context handle) executing it.
func WithOwner(owner any) Option {
	return func(g *Graph) { g.owner = owner }
}

// WithHost marks the graph as a subgraph instance executed by host.
// The instance inherits the host clock, hooks and owner unless set explicitly.
func WithHost(host *Graph) Option {
	return func(g *Graph) { g.host = host }
}

// New creates an empty graph.
func New(id string, opts ...Option) *Graph {
	g := &Graph{
		id:   id,
		root: NoHandle,
	}
	for _, opt := range opts {
		opt(g)
	}
	if h := g.host; h != nil {
		if g.clock == nil {
			g.clock = h.clock
		}
		if g.owner == nil {
			g.owner = h.owner
		}
		if g.logger == nil {
			g.logger = h.logger
		}
		g.hooks = h.hooks.Merge(g.hooks)
	}
	if g.logger == nil {
		g.logger = nopLogger
	}
	if g.clock == nil {
		g.clock = NewFrameClock(0)
	}
	if g.blackboard == nil {
		g.blackboard = blackboard.New(id)
	}
	if g.sourceID == "" {
		g.sourceID = id
	}
	return g
}

func (g *Graph) ID() string                         { return g.id }
func (g *Graph) SourceID() string                   { return g.sourceID }
func (g *Graph) Owner() any                         { return g.owner }
func (g *Graph) Host() *Graph                       { return g.host }
func (g *Graph) Blackboard() *blackboard.Blackboard { return g.blackboard }
func (g *Graph) Clock() Clock                       { return g.clock }
func (g *Graph) Logger() *slog.Logger               { return g.logger }
func (g *Graph) Len() int                           { return len(g.nodes) }

// SetOwner rebinds the context handle of the graph.
func (g *Graph) SetOwner(owner any) { g.owner = owner }

// Context returns the context of the tick in progress, or context.Background.
func (g *Graph) Context() context.Context {
	if g.ctx == nil {
		return context.Background()
	}
	return g.ctx
}

// Add registers n under id and returns its handle.
func (g *Graph) Add(id, kind string, n Node) Handle {
	h := Handle(len(g.nodes))
	b := n.NodeBase()
	b.graph = g
	b.handle = h
	b.id = id
	b.kind = kind
	b.status = domain.StatusUninitialized
	b.logger = g.logger.With("tree", g.id, "node", id, "kind", kind)

	g.nodes = append(g.nodes, n)
	g.children = append(g.children, nil)
	g.parents = append(g.parents, nil)
	g.isActive = append(g.isActive, false)
	return h
}

// Link appends child to parent's children. It enforces the topology
// capabilities: parent must accept children, and child may only gain a second
// parent if it accepts multiple parents.
func (g *Graph) Link(parent, child Handle) error {
	if !g.valid(parent) || !g.valid(child) {
		return fmt.Errorf("link %d -> %d: invalid handle", parent, child)
	}
	p, c := g.nodes[parent], g.nodes[child]
	hc, ok := p.(HasChildren)
	if !ok {
		return fmt.Errorf("node %q (%s) does not accept children", p.NodeBase().id, p.NodeBase().kind)
	}
	if limit := hc.MaxChildren(); limit != Unlimited && len(g.children[parent]) >= limit {
		return fmt.Errorf("node %q (%s) accepts at most %d children", p.NodeBase().id, p.NodeBase().kind, limit)
	}
	if len(g.parents[child]) > 0 {
		hp, ok := c.(HasParents)
		if !ok || !hp.MultipleParents() {
			return fmt.Errorf("node %q (%s) already has a parent", c.NodeBase().id, c.NodeBase().kind)
		}
	}
	if parent == child || g.reaches(child, parent) {
		return fmt.Errorf("link %q -> %q: %w", p.NodeBase().id, c.NodeBase().id, domain.ErrCycle)
	}
	g.children[parent] = append(g.children[parent], child)
	g.parents[child] = append(g.parents[child], parent)
	return nil
}

// reaches reports whether to is reachable from from.
func (g *Graph) reaches(from, to Handle) bool {
	seen := make([]bool, len(g.nodes))
	stack := []Handle{from}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == to {
			return true
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		stack = append(stack, g.children[h]...)
	}
	return false
}

// SetRoot designates the node ticked by the driver.
func (g *Graph) SetRoot(h Handle) error {
	if !g.valid(h) {
		return fmt.Errorf("set root %d: invalid handle", h)
	}
	g.root = h
	return nil
}

// Root returns the root node, or nil when none was set.
func (g *Graph) Root() Node {
	if g.root == NoHandle {
		return nil
	}
	return g.nodes[g.root]
}

// Node returns the node for h, or nil.
func (g *Graph) Node(h Handle) Node {
	if !g.valid(h) {
		return nil
	}
	return g.nodes[h]
}

// Lookup finds a node by id.
func (g *Graph) Lookup(id string) (Node, bool) {
	for _, n := range g.nodes {
		if n.NodeBase().id == id {
			return n, true
		}
	}
	return nil, false
}

// Nodes returns every node in handle order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

func (g *Graph) valid(h Handle) bool {
	return h >= 0 && int(h) < len(g.nodes)
}
