package tree

import (
	"context"
	"log/slog"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
)

// Handle addresses a node inside its Graph.
type Handle int

// NoHandle is the zero link.
const NoHandle Handle = -1

// Node is the unit of execution. Implementations embed one of Action, Composite,
// Modifier or Join, which provide NodeBase and the topology capabilities.
type Node interface {
	NodeBase() *Base
	OnStart() domain.Status
	OnUpdate() domain.Status
	OnEnd()
}

// HasChildren is implemented by nodes that accept children.
type HasChildren interface {
	// MaxChildren returns the child limit, or Unlimited.
	MaxChildren() int
}

// HasParents is implemented by nodes that may be linked from several parents.
type HasParents interface {
	MultipleParents() bool
}

// Stateful nodes carry state across a save/load boundary. OnSerialize returns the
// fields worth persisting; OnDeserialize rebuilds transient handles from them.
type Stateful interface {
	OnSerialize() map[string]any
	OnDeserialize(data map[string]any) error
}

// ResetListener is notified when ResetStatus returns the node to Uninitialized.
type ResetListener interface {
	OnReset()
}

// Unlimited is the MaxChildren of composites.
const Unlimited = -1

// Base holds the state the graph manages on behalf of every node.
// Status is only mutated by the graph's lifecycle functions.
type Base struct {
	graph  *Graph
	handle Handle
	id     string
	kind   string
	status domain.Status
	ended  bool
	busy   bool
	logger *slog.Logger

	// activatedAt is the tick that last put the node on the active list.
	activatedAt uint64
}

func (b *Base) NodeBase() *Base { return b }

func (b *Base) ID() string            { return b.id }
func (b *Base) Kind() string          { return b.kind }
func (b *Base) Handle() Handle        { return b.handle }
func (b *Base) Graph() *Graph         { return b.graph }
func (b *Base) Status() domain.Status { return b.status }

// Logger returns the diagnostics sink scoped to this node.
func (b *Base) Logger() *slog.Logger {
	if b.logger == nil {
		return nopLogger
	}
	return b.logger
}

// Blackboard returns the blackboard of the owning graph.
func (b *Base) Blackboard() *blackboard.Blackboard {
	return b.graph.blackboard
}

// Clock returns the clock of the owning graph.
func (b *Base) Clock() Clock {
	return b.graph.clock
}

// Context returns the context of the tick in progress.
func (b *Base) Context() context.Context {
	return b.graph.Context()
}

// Children returns the linked children in order.
func (b *Base) Children() []Node {
	links := b.graph.children[b.handle]
	out := make([]Node, 0, len(links))
	for _, h := range links {
		out = append(out, b.graph.nodes[h])
	}
	return out
}

// Child returns the first child, or nil.
func (b *Base) Child() Node {
	links := b.graph.children[b.handle]
	if len(links) == 0 {
		return nil
	}
	return b.graph.nodes[links[0]]
}

// Parents returns the nodes linking to this one.
func (b *Base) Parents() []Node {
	links := b.graph.parents[b.handle]
	out := make([]Node, 0, len(links))
	for _, h := range links {
		out = append(out, b.graph.nodes[h])
	}
	return out
}

// Action is the base of leaf nodes.
type Action struct{ Base }

// Composite is the base of multi-child nodes.
type Composite struct{ Base }

func (*Composite) MaxChildren() int { return Unlimited }

// Modifier is the base of single-child nodes.
type Modifier struct{ Base }

func (*Modifier) MaxChildren() int { return 1 }

// Join is the base of nodes reachable from several parents, feeding one child.
type Join struct{ Base }

func (*Join) MaxChildren() int      { return 1 }
func (*Join) MultipleParents() bool { return true }
