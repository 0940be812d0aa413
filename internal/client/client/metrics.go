package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records gateway calls. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the gateway collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crew_gateway_requests_total",
				Help: "Backend calls by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crew_gateway_request_duration_seconds",
				Help:    "Backend call latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *Metrics) observe(endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, outcome).Inc()
	m.duration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// outcome maps an error to a low-cardinality label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isKind(err, ErrUnavailable):
		return "unreachable"
	case isKind(err, ErrUnauthorized):
		return "unauthorized"
	case isKind(err, ErrCredentialsRejected):
		return "rejected"
	case isKind(err, ErrServerValidation):
		return "invalid"
	case isKind(err, ErrChallengeInvalid):
		return "challenge_invalid"
	default:
		return "error"
	}
}
