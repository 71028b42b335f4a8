package observability

import (
	"context"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/aretw0/arbor"

// Tracing opens one span per tick of every instance and records node starts
// and ends as span events.
type Tracing struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewTracing creates tracing hooks on tp, or on the global provider when tp is nil.
func NewTracing(tp trace.TracerProvider) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{
		tracer: tp.Tracer(instrumentation),
		spans:  make(map[string]trace.Span),
	}
}

// Hooks returns the lifecycle hooks producing the spans.
func (t *Tracing) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTickStart: t.tickStart,
		OnTick:      t.tickEnd,
		OnNodeStart: func(_ context.Context, e *domain.NodeEvent) { t.nodeEvent("node.start", e) },
		OnNodeEnd:   func(_ context.Context, e *domain.NodeEvent) { t.nodeEvent("node.end", e) },
	}
}

func (t *Tracing) tickStart(ctx context.Context, e *domain.TickEvent) {
	_, span := t.tracer.Start(ctx, "arbor.tick",
		trace.WithTimestamp(e.Timestamp),
		trace.WithAttributes(
			attribute.String("arbor.tree", source(e.EventBase)),
			attribute.String("arbor.instance", e.TreeID),
			attribute.Int64("arbor.frame", int64(e.Frame)),
		),
	)
	t.mu.Lock()
	t.spans[e.TreeID] = span
	t.mu.Unlock()
}

func (t *Tracing) tickEnd(_ context.Context, e *domain.TickEvent) {
	t.mu.Lock()
	span, ok := t.spans[e.TreeID]
	delete(t.spans, e.TreeID)
	t.mu.Unlock()
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("arbor.status", e.Status.String()))
	if e.Status == domain.StatusFailure {
		span.SetStatus(codes.Error, "tree failed")
	}
	span.End(trace.WithTimestamp(e.Timestamp))
}

func (t *Tracing) nodeEvent(name string, e *domain.NodeEvent) {
	t.mu.Lock()
	span, ok := t.spans[e.TreeID]
	t.mu.Unlock()
	if !ok {
		return
	}
	span.AddEvent(name, trace.WithAttributes(
		attribute.String("arbor.node", e.NodeID),
		attribute.String("arbor.kind", e.NodeKind),
		attribute.String("arbor.status", e.Status.String()),
	))
}
