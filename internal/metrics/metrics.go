// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sealpay"

// Result label values.
const (
	ResultOK              = "ok"
	ResultDuplicate       = "duplicate"
	ResultRejected        = "rejected"
	ResultError           = "error"
	ResultPaymentRequired = "payment_required"
	ResultSettled         = "settled"
	ResultFailed          = "failed"
	ResultPending         = "pending"
)

// Metrics owns a dedicated registry so that tests and multiple servers in
// one process do not collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	uploads          *prometheus.CounterVec
	keyReleases      *prometheus.CounterVec
	settlementPolls  *prometheus.CounterVec
	stateTransitions *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Content uploads by result.",
		}, []string{"result"}),
		keyReleases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_releases_total",
			Help:      "Key release requests by result.",
		}, []string{"result"}),
		settlementPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_polls_total",
			Help:      "Settlement backend polls by backend and result.",
		}, []string{"backend", "result"}),
		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Payment state transitions.",
		}, []string{"from", "to"}),
	}

	m.registry.MustRegister(
		m.uploads,
		m.keyReleases,
		m.settlementPolls,
		m.stateTransitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The recorders below are nil-safe so components may run without metrics.

func (m *Metrics) Upload(result string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result).Inc()
}

func (m *Metrics) KeyRelease(result string) {
	if m == nil {
		return
	}
	m.keyReleases.WithLabelValues(result).Inc()
}

func (m *Metrics) SettlementPoll(backend, result string) {
	if m == nil {
		return
	}
	m.settlementPolls.WithLabelValues(backend, result).Inc()
}

func (m *Metrics) StateTransition(from, to string) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(from, to).Inc()
}
