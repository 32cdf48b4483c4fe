// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "licensegate"

// Result labels.
const (
	ResultSuccess = "success"
)

// Metrics holds the authorization counters. A nil *Metrics records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	checkouts        *prometheus.CounterVec
	proofValidations *prometheus.CounterVec
	tokensIssued     *prometheus.CounterVec
	introspections   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout sessions requested, by processor and result.",
		}, []string{"processor", "result"}),
		proofValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proof_validations_total",
			Help:      "Payment proof validations, by processor and result.",
		}, []string{"processor", "result"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Access tokens issued, by processor.",
		}, []string{"processor"}),
		introspections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "introspections_total",
			Help:      "Token introspections, by outcome.",
		}, []string{"active"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.checkouts,
		m.proofValidations,
		m.tokensIssued,
		m.introspections,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Checkout(processor, result string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(processor, result).Inc()
}

func (m *Metrics) ProofValidation(processor, result string) {
	if m == nil {
		return
	}
	m.proofValidations.WithLabelValues(processor, result).Inc()
}

func (m *Metrics) TokenIssued(processor string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(processor).Inc()
}

func (m *Metrics) Introspection(active bool) {
	if m == nil {
		return
	}
	m.introspections.WithLabelValues(strconv.FormatBool(active)).Inc()
}
