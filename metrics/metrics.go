package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dvmjob"

// Metrics is nil safe: a nil *Metrics records nothing.
type Metrics struct {
	submitted       prometheus.Counter
	publishFailures prometheus.Counter
	transitions     *prometheus.CounterVec
	paymentTimeouts prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Job requests handed to the transport.",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Job requests no relay accepted.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_transitions_total",
			Help:      "Job status transitions by target status.",
		}, []string{"status"}),
		paymentTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_timeouts_total",
			Help:      "Jobs whose invoice was not confirmed before the payment timer fired.",
		}),
	}

	reg.MustRegister(
		m.submitted,
		m.publishFailures,
		m.transitions,
		m.paymentTimeouts,
	)

	return m
}

func (m *Metrics) Submitted() {
	if m == nil {
		return
	}
	m.submitted.Inc()
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) PaymentTimedOut() {
	if m == nil {
		return
	}
	m.paymentTimeouts.Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
