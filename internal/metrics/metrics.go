// Package metrics holds the Prometheus collectors a session reports to.
// Collectors are registered on a caller supplied registerer so that several
// sessions, or tests, never collide on the default registry.
package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutcomeOK labels a request that returned a 2xx body.
const OutcomeOK = "ok"

type Metrics struct {
	// Requests counts dispatched requests by method, path and outcome.
	Requests *prometheus.CounterVec
	// Latency observes request round trips in seconds.
	Latency *prometheus.HistogramVec
	// Signed counts signed requests by method and path.
	Signed *prometheus.CounterVec
	// BreakerState is 0 closed, 1 open, 2 half-open.
	BreakerState prometheus.Gauge
	// BreakerRejections counts calls refused by an open breaker.
	BreakerRejections prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graviex_requests_total",
				Help: "Requests dispatched to the exchange",
			},
			[]string{"method", "path", "outcome"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graviex_request_duration_seconds",
				Help:    "Request round trip latency",
				Buckets: []float64{.025, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"method", "path"},
		),
		Signed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graviex_signed_requests_total",
				Help: "Requests signed with the configured key pair",
			},
			[]string{"method", "path"},
		),
		BreakerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "graviex_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
		),
		BreakerRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "graviex_circuit_breaker_rejections_total",
				Help: "Calls rejected while the circuit breaker was open",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.Requests, m.Latency, m.Signed, m.BreakerState, m.BreakerRejections,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// ObserveRequest records one finished request. outcome is OutcomeOK or an
// error type name such as "TIMEOUT".
func (m *Metrics) ObserveRequest(method, path, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, path, strings.ToLower(outcome)).Inc()
	m.Latency.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordSigned(method, path string) {
	if m == nil {
		return
	}
	m.Signed.WithLabelValues(method, path).Inc()
}

func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.BreakerState.Set(float64(state))
}

func (m *Metrics) RecordBreakerRejection() {
	if m == nil {
		return
	}
	m.BreakerRejections.Inc()
}
