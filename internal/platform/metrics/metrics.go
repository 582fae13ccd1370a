// Package metrics holds the Prometheus collectors for the membership engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "membership"

type Metrics struct {
	verifications *prometheus.CounterVec
	challenges    *prometheus.CounterVec
	rpcRequests   *prometheus.CounterVec
	rpcDuration   *prometheus.HistogramVec
	transitions   *prometheus.CounterVec
	events        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Verification attempts by outcome code.",
		}, []string{"outcome"}),
		challenges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_total",
			Help:      "Challenge guard decisions by result.",
		}, []string{"result"}),
		rpcRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Chain RPC calls by method and result.",
		}, []string{"method", "result"}),
		rpcDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_request_duration_seconds",
			Help:      "Chain RPC call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Membership status transitions by target status.",
		}, []string{"status"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Lifecycle events by type and publish result.",
		}, []string{"type", "result"}),
	}
}

func (m *Metrics) Verification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Challenge(result string) {
	if m == nil {
		return
	}
	m.challenges.WithLabelValues(result).Inc()
}

func (m *Metrics) RPC(method, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, result).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) Event(eventType, result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, result).Inc()
}
