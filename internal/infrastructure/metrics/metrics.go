package metrics

import (
	"github.com/auditsuite/tasktimer/internal/core/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── Timer ───────────────────────────────────────────────────────────────────

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tasktimer",
		Subsystem: "timer",
		Name:      "transitions_total",
		Help:      "Transition attempts, labelled by event and outcome.",
	}, []string{"event", "outcome"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tasktimer",
		Subsystem: "timer",
		Name:      "active_sessions",
		Help:      "Users with a running timer in this process.",
	})

	TrackedSecondsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tasktimer",
		Subsystem: "timer",
		Name:      "tracked_seconds_total",
		Help:      "Worked seconds closed by terminating transitions.",
	})

	BackendLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tasktimer",
		Subsystem: "backend",
		Name:      "call_duration_seconds",
		Help:      "Latency of calls to the authoritative task backend.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"operation"})

	// ─── Notifier ────────────────────────────────────────────────────────────────

	NotifierEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tasktimer",
		Subsystem: "notify",
		Name:      "events_total",
		Help:      "Events published on the cross-surface bus.",
	}, []string{"type"})

	SurfaceConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tasktimer",
		Subsystem: "notify",
		Name:      "surface_connections",
		Help:      "Floating surfaces connected over the websocket bridge.",
	})

	// ─── Events stream ───────────────────────────────────────────────────────────

	PublishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tasktimer",
		Subsystem: "events",
		Name:      "publish_failures_total",
		Help:      "Transitions that could not be published to the events stream.",
	})
)

// Outcome labels for TransitionsTotal.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// ObserveBus counts every event published on bus. It returns the
// subscription ID.
func ObserveBus(bus *notify.Bus) string {
	return bus.SubscribeAll(func(e notify.Event) {
		NotifierEventsTotal.WithLabelValues(e.EventType()).Inc()
	})
}
