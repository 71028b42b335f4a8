package observability

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records tick and node counters. Series are labelled by the source
// tree, never by instance, to keep cardinality bounded.
type Metrics struct {
	ticks        *prometheus.CounterVec
	tickDuration *prometheus.HistogramVec
	nodeStarts   *prometheus.CounterVec
	nodeEnds     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_ticks_total",
				Help: "Total number of ticks, by tree and resulting root status",
			},
			[]string{"tree", "status"},
		),
		tickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbor_tick_duration_seconds",
				Help:    "Duration of ticks",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"tree"},
		),
		nodeStarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_node_starts_total",
				Help: "Total number of node starts",
			},
			[]string{"tree", "kind"},
		),
		nodeEnds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_node_ends_total",
				Help: "Total number of node ends, by final status",
			},
			[]string{"tree", "kind", "status"},
		),
	}
	for _, c := range []prometheus.Collector{m.ticks, m.tickDuration, m.nodeStarts, m.nodeEnds} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns the lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTick: func(_ context.Context, e *domain.TickEvent) {
			tree := source(e.EventBase)
			m.ticks.WithLabelValues(tree, e.Status.String()).Inc()
			m.tickDuration.WithLabelValues(tree).Observe(e.Duration.Seconds())
		},
		OnNodeStart: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeStarts.WithLabelValues(source(e.EventBase), e.NodeKind).Inc()
		},
		OnNodeEnd: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeEnds.WithLabelValues(source(e.EventBase), e.NodeKind, e.Status.String()).Inc()
		},
	}
}

func source(e domain.EventBase) string {
	if e.SourceID != "" {
		return e.SourceID
	}
	return e.TreeID
}
