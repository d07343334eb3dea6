// Package metrics exposes Prometheus counters for the sync engine. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dappsync"

// Metrics groups every collector the engine updates.
type Metrics struct {
	sessionTransitions *prometheus.CounterVec
	batches            *prometheus.CounterVec
	eventsAccepted     *prometheus.CounterVec
	eventsDuplicate    *prometheus.CounterVec
	enrichmentFailures prometheus.Counter
	transactions       *prometheus.CounterVec
	emitFailures       *prometheus.CounterVec
	feedClients        prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Wallet session state transitions by target state.",
		}, []string{"state"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_batches_total",
			Help:      "Contract read batches by batch and result.",
		}, []string{"batch", "result"}),
		eventsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_accepted_total",
			Help:      "Event notifications added to the event log.",
		}, []string{"kind"}),
		eventsDuplicate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_duplicate_total",
			Help:      "Redelivered event notifications dropped.",
		}, []string{"kind"}),
		enrichmentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_failures_total",
			Help:      "Token URI fetches that failed.",
		}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Submitted transactions by operation and result.",
		}, []string{"op", "result"}),
		emitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emit_failures_total",
			Help:      "Events that could not be forwarded to a sink.",
		}, []string{"sink"}),
		feedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected live feed clients.",
		}),
	}

	reg.MustRegister(
		m.sessionTransitions,
		m.batches,
		m.eventsAccepted,
		m.eventsDuplicate,
		m.enrichmentFailures,
		m.transactions,
		m.emitFailures,
		m.feedClients,
	)
	return m
}

// SessionTransition counts a session state change.
func (m *Metrics) SessionTransition(state string) {
	if m == nil {
		return
	}
	m.sessionTransitions.WithLabelValues(state).Inc()
}

// BatchLoaded counts a read batch by outcome.
func (m *Metrics) BatchLoaded(batch string, ok bool) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(batch, result(ok)).Inc()
}

// EventAccepted counts a new event of kind.
func (m *Metrics) EventAccepted(kind string) {
	if m == nil {
		return
	}
	m.eventsAccepted.WithLabelValues(kind).Inc()
}

// EventDuplicate counts a dropped redelivery.
func (m *Metrics) EventDuplicate(kind string) {
	if m == nil {
		return
	}
	m.eventsDuplicate.WithLabelValues(kind).Inc()
}

// EnrichmentFailed counts a failed tokenURI fetch.
func (m *Metrics) EnrichmentFailed() {
	if m == nil {
		return
	}
	m.enrichmentFailures.Inc()
}

// Transaction counts a confirmed or failed transaction by operation.
func (m *Metrics) Transaction(op string, ok bool) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(op, result(ok)).Inc()
}

// EmitFailed counts an event a sink did not accept.
func (m *Metrics) EmitFailed(sink string) {
	if m == nil {
		return
	}
	m.emitFailures.WithLabelValues(sink).Inc()
}

// FeedClientConnected increments the connected feed client gauge.
func (m *Metrics) FeedClientConnected() {
	if m == nil {
		return
	}
	m.feedClients.Inc()
}

// FeedClientDisconnected decrements the connected feed client gauge.
func (m *Metrics) FeedClientDisconnected() {
	if m == nil {
		return
	}
	m.feedClients.Dec()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
