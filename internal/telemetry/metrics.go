// Package telemetry exposes a running simulation's counters as Prometheus
// metrics. Adapted from zephyrcache's internal/telemetry/metrics.go: same
// private registry plus counters/gauges/MetricsHandler shape (plain Counter
// and Gauge here, no label vectors), retargeted from HTTP request metrics to
// simulation counters so a long synthetic run
// (the shipped configuration spans 7,776,000 simulated seconds) can be
// scraped live.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	PresenceUpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "presencesim",
		Name:      "presence_updates_total",
		Help:      "Total number of presence-belief updates recorded by any node.",
	})

	MessagesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "presencesim",
		Name:      "messages_sent_total",
		Help:      "Total number of messages pushed onto the bus.",
	})

	MessagesDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "presencesim",
		Name:      "messages_dropped_total",
		Help:      "Total number of messages dropped by the bus's lossy delivery.",
	})

	SimulatedSecondsElapsed = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "presencesim",
		Name:      "simulated_seconds_elapsed",
		Help:      "Virtual seconds of simulated time elapsed so far.",
	})

	AccuracyRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "presencesim",
		Name:      "accuracy_rate",
		Help:      "Fraction of buddy belief entries matching truth, as of the last convergence check.",
	})
)

func init() {
	Registry.MustRegister(PresenceUpdatesTotal, MessagesSentTotal, MessagesDroppedTotal, SimulatedSecondsElapsed, AccuracyRate)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics",
// telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Snapshot is the minimal read the simulator exposes for mirroring into
// Prometheus without internal/telemetry needing to import pkg/presence.
type Snapshot struct {
	PresenceUpdates uint32
	MessagesSent    uint32
	MessagesDropped uint32
	SecondsElapsed  uint32
	Accuracy        float64
}

// lastValues tracks the last absolute counter value observed so repeated
// Observe calls (the simulator polls its own live, monotonic Stats) can
// translate an absolute total into the delta a prometheus.Counter expects.
var lastValues struct {
	messagesSent    uint32
	messagesDropped uint32
	presenceUpdates uint32
}

// Observe mirrors a point-in-time snapshot of the simulation's counters
// into the Prometheus gauges/counters.
func Observe(snap Snapshot) {
	SimulatedSecondsElapsed.Set(float64(snap.SecondsElapsed))
	AccuracyRate.Set(snap.Accuracy)
	MessagesSentTotal.Add(float64(snap.MessagesSent - lastValues.messagesSent))
	MessagesDroppedTotal.Add(float64(snap.MessagesDropped - lastValues.messagesDropped))
	PresenceUpdatesTotal.Add(float64(snap.PresenceUpdates - lastValues.presenceUpdates))
	lastValues.messagesSent = snap.MessagesSent
	lastValues.messagesDropped = snap.MessagesDropped
	lastValues.presenceUpdates = snap.PresenceUpdates
}
