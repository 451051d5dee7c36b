package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Outcome labels for the requests counter.
const (
	outcomeOK             = "ok"
	outcomeStatus         = "status"
	outcomeNetwork        = "network"
	outcomeSessionInvalid = "session_invalid"
	outcomeRejected       = "rejected" // breaker open or too many half-open probes
)

type metrics struct {
	requests      *prometheus.CounterVec
	invalidations prometheus.Counter
	breakerState  prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cinesync",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Dispatched backend requests by outcome.",
		}, []string{"outcome"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cinesync",
			Subsystem: "gateway",
			Name:      "session_invalidations_total",
			Help:      "Times the logout protocol ran.",
		}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cinesync",
			Subsystem: "gateway",
			Name:      "breaker_state",
			Help:      "Transport circuit breaker state (0 closed, 1 half-open, 2 open).",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.invalidations, m.breakerState)
	}
	return m
}

func (m *metrics) observe(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
