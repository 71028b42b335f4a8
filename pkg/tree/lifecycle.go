package tree

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// StartNode activates n and returns its status.
//
// A node already in progress is not restarted, and a node that reached a
// terminal status is not re-entered until ResetStatus.
func (g *Graph) StartNode(n Node) domain.Status {
	b := n.NodeBase()
	if b.status.IsInProgress() && !b.ended {
		if r, ok := n.(Rejoiner); ok && !b.busy {
			g.settle(n, g.callRejoin(r))
		}
		return b.status
	}
	if b.status.IsTerminal() {
		return b.status
	}
	b.ended = false
	g.emitNode(domain.EventNodeStart, b)

	status := g.callStart(n)
	switch status {
	case domain.StatusSuccess, domain.StatusFailure:
		b.status = status
		g.EndNode(n)
	case domain.StatusRunning:
		b.status = status
		g.activate(b.handle)
	default:
		b.status = domain.StatusWaiting
	}
	return b.status
}

// Rejoiner is implemented by joins counting arrivals. When another parent
// starts a node that is already in progress, Rejoin runs instead of OnStart.
type Rejoiner interface {
	Rejoin() domain.Status
}

// EndNode takes n out of active participation. OnEnd runs at most once per
// activation; further calls are no-ops. In-progress children are ended too,
// except joins still held by another active parent. A node ended while in
// progress is aborted and reports Failure.
func (g *Graph) EndNode(n Node) {
	b := n.NodeBase()
	if b.ended || b.status == domain.StatusUninitialized {
		return
	}
	b.ended = true
	g.deactivate(b.handle)
	if b.status.IsInProgress() {
		b.status = domain.StatusFailure
	}

	g.callEnd(n)
	for _, c := range g.children[b.handle] {
		cb := g.nodes[c].NodeBase()
		if cb.status.IsInProgress() && !cb.ended && !g.heldElsewhere(c, b.handle) {
			g.EndNode(g.nodes[c])
		}
	}
	g.emitNode(domain.EventNodeEnd, b)
}

// heldElsewhere reports whether a parent other than except is still in progress.
func (g *Graph) heldElsewhere(h, except Handle) bool {
	for _, p := range g.parents[h] {
		if p == except {
			continue
		}
		pb := g.nodes[p].NodeBase()
		if pb.status.IsInProgress() && !pb.ended {
			return true
		}
	}
	return false
}

// ResetStatus returns n and its subtree to Uninitialized, ending it first if
// it is still in progress. Resetting an uninitialized node is a no-op, so a
// child reached from several parents is reset once per activation.
func (g *Graph) ResetStatus(n Node) {
	b := n.NodeBase()
	if b.status == domain.StatusUninitialized {
		return
	}
	if b.status.IsInProgress() {
		g.EndNode(n)
	}
	b.status = domain.StatusUninitialized
	b.ended = false
	g.deactivate(b.handle)
	if r, ok := n.(ResetListener); ok {
		r.OnReset()
	}
	for _, c := range g.children[b.handle] {
		g.ResetStatus(g.nodes[c])
	}
}

// Restart resets the whole tree so the next Tick starts the root again.
func (g *Graph) Restart() {
	if root := g.Root(); root != nil {
		g.ResetStatus(root)
	}
}

// Status returns the root status.
func (g *Graph) Status() domain.Status {
	if root := g.Root(); root != nil {
		return root.NodeBase().status
	}
	return domain.StatusUninitialized
}

// Tick drives one simulation step. The first tick starts the root; later ticks
// update Running nodes, waking their Waiting parents as they finish. A root
// in a terminal status is left alone until Restart.
func (g *Graph) Tick(ctx context.Context) domain.Status {
	prev := g.ctx
	g.ctx = ctx
	defer func() { g.ctx = prev }()

	g.ticks++
	start := time.Now()
	if g.hooks.OnTickStart != nil {
		g.hooks.OnTickStart(ctx, g.tickEvent(g.Status(), 0))
	}

	root := g.Root()
	if root == nil {
		g.logger.Error("tick without root", "tree", g.id)
		return domain.StatusFailure
	}
	rb := root.NodeBase()
	switch {
	case rb.status == domain.StatusUninitialized:
		g.StartNode(root)
	case rb.status.IsInProgress():
		g.updateActive()
	}

	if g.hooks.OnTick != nil {
		g.hooks.OnTick(ctx, g.tickEvent(rb.status, time.Since(start)))
	}
	return rb.status
}

// updateActive updates the nodes that were Running when the tick began.
// Nodes started or restarted during this tick wait for the next one.
func (g *Graph) updateActive() {
	batch := append([]Handle(nil), g.active...)
	for _, h := range batch {
		b := g.nodes[h].NodeBase()
		if !g.isActive[h] || b.status != domain.StatusRunning || b.activatedAt == g.ticks {
			continue
		}
		g.update(g.nodes[h])
	}
}

// update calls OnUpdate on n and propagates a terminal result to its parents.
func (g *Graph) update(n Node) {
	g.settle(n, g.callUpdate(n))
}

// settle records the status an in-progress node reported.
func (g *Graph) settle(n Node, status domain.Status) {
	b := n.NodeBase()
	switch status {
	case domain.StatusSuccess, domain.StatusFailure:
		b.status = status
		g.EndNode(n)
		g.wakeParents(b.handle)
	case domain.StatusRunning:
		b.status = status
		g.activate(b.handle)
	default:
		b.status = domain.StatusWaiting
		g.deactivate(b.handle)
	}
}

// wakeParents updates every Waiting parent of h. Parents inside one of their
// own callbacks are skipped; they read the result directly.
func (g *Graph) wakeParents(h Handle) {
	for _, p := range g.parents[h] {
		pn := g.nodes[p]
		pb := pn.NodeBase()
		if pb.status == domain.StatusWaiting && !pb.ended && !pb.busy {
			g.update(pn)
		}
	}
}

func (g *Graph) activate(h Handle) {
	if g.isActive[h] {
		return
	}
	g.isActive[h] = true
	g.nodes[h].NodeBase().activatedAt = g.ticks
	g.active = append(g.active, h)
}

func (g *Graph) deactivate(h Handle) {
	if !g.isActive[h] {
		return
	}
	g.isActive[h] = false
	for i, a := range g.active {
		if a == h {
			g.active = append(g.active[:i], g.active[i+1:]...)
			return
		}
	}
}

func (g *Graph) callStart(n Node) (status domain.Status) {
	defer g.recoverInto(n, "start", &status)
	n.NodeBase().busy = true
	return n.OnStart()
}

func (g *Graph) callUpdate(n Node) (status domain.Status) {
	defer g.recoverInto(n, "update", &status)
	n.NodeBase().busy = true
	return n.OnUpdate()
}

func (g *Graph) callRejoin(r Rejoiner) (status domain.Status) {
	n := r.(Node)
	defer g.recoverInto(n, "rejoin", &status)
	n.NodeBase().busy = true
	return r.Rejoin()
}

func (g *Graph) callEnd(n Node) {
	var ignored domain.Status
	defer g.recoverInto(n, "end", &ignored)
	n.OnEnd()
}

func (g *Graph) recoverInto(n Node, phase string, status *domain.Status) {
	n.NodeBase().busy = false
	if r := recover(); r != nil {
		n.NodeBase().Logger().Error("node panicked", "phase", phase, "err", fmt.Errorf("%v", r))
		*status = domain.StatusFailure
	}
}

func (g *Graph) emitNode(typ domain.EventType, b *Base) {
	hook := g.hooks.OnNodeStart
	if typ == domain.EventNodeEnd {
		hook = g.hooks.OnNodeEnd
	}
	if hook == nil {
		return
	}
	hook(g.Context(), &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: typ, TreeID: g.id, SourceID: g.sourceID},
		NodeID:    b.id,
		NodeKind:  b.kind,
		Status:    b.status,
	})
}

func (g *Graph) tickEvent(status domain.Status, d time.Duration) *domain.TickEvent {
	return &domain.TickEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventTick, TreeID: g.id, SourceID: g.sourceID},
		Frame:     g.clock.Frame(),
		Status:    status,
		Duration:  d,
	}
}
