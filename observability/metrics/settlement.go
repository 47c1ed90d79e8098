package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"pactnet/core/events"
)

// SettlementMetrics aggregates the ledger-wide transition counters exposed
// on the daemon's /metrics route.
type SettlementMetrics struct {
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
}

var (
	settlementOnce     sync.Once
	settlementRegistry *SettlementMetrics
)

// Settlement returns the process-wide settlement metrics registry.
func Settlement() *SettlementMetrics {
	settlementOnce.Do(func() {
		settlementRegistry = &SettlementMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pactnet_transitions_total",
				Help: "Count of committed state transitions by event type.",
			}, []string{"type"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pactnet_rejections_total",
				Help: "Count of rejected operations by RPC method.",
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			settlementRegistry.transitions,
			settlementRegistry.rejections,
		)
	})
	return settlementRegistry
}

// RecordTransition increments the committed-transition counter.
func (m *SettlementMetrics) RecordTransition(eventType string) {
	if m == nil || eventType == "" {
		return
	}
	m.transitions.WithLabelValues(eventType).Inc()
}

// RecordRejection increments the rejected-operation counter for a method.
func (m *SettlementMetrics) RecordRejection(method string) {
	if m == nil || method == "" {
		return
	}
	m.rejections.WithLabelValues(method).Inc()
}

// Emitter adapts the metrics registry to the event emitter contract so the
// daemon can fan committed transitions straight into the counters.
type Emitter struct {
	metrics *SettlementMetrics
}

// NewEmitter wraps the registry in an events.Emitter.
func NewEmitter(metrics *SettlementMetrics) *Emitter {
	return &Emitter{metrics: metrics}
}

// Emit implements the events.Emitter interface.
func (e *Emitter) Emit(evt events.Event) {
	if e == nil || e.metrics == nil || evt == nil {
		return
	}
	e.metrics.RecordTransition(evt.EventType())
}
