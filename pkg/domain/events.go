package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTick      EventType = "tick"
	EventNodeStart EventType = "node_start"
	EventNodeEnd   EventType = "node_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	// TreeID is the instance ID; SourceID the description it was built from.
	TreeID   string `json:"tree_id"`
	SourceID string `json:"source_id,omitempty"`
}

// NodeEvent represents a node entering or leaving active participation.
type NodeEvent struct {
	EventBase
	NodeID   string `json:"node_id"`
	NodeKind string `json:"node_kind"`
	Status   Status `json:"status"`
}

// TickEvent is emitted after the root has been driven for one simulation step.
type TickEvent struct {
	EventBase
	Frame    uint64        `json:"frame"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for runtime observability.
// All hooks run synchronously on the ticking goroutine.
type LifecycleHooks struct {
	OnTickStart func(context.Context, *TickEvent)
	OnTick      func(context.Context, *TickEvent)
	OnNodeStart func(context.Context, *NodeEvent)
	OnNodeEnd   func(context.Context, *NodeEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTickStart: chainTick(h.OnTickStart, other.OnTickStart),
		OnTick:      chainTick(h.OnTick, other.OnTick),
		OnNodeStart: chainNode(h.OnNodeStart, other.OnNodeStart),
		OnNodeEnd:   chainNode(h.OnNodeEnd, other.OnNodeEnd),
	}
}

func chainTick(a, b func(context.Context, *TickEvent)) func(context.Context, *TickEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *TickEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainNode(a, b func(context.Context, *NodeEvent)) func(context.Context, *NodeEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *NodeEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
