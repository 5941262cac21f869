package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts transaction builds and delegation attempts.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	BuildsTotal      *prometheus.CounterVec
	DelegationsTotal *prometheus.CounterVec
	BuildDuration    *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		BuildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartwallet_builds_total",
			Help: "Transaction builds by clause strategy and final status",
		}, []string{"strategy", "status"}),
		DelegationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartwallet_delegations_total",
			Help: "Fee delegation attempts by delegation type and outcome",
		}, []string{"type", "outcome"}),
		BuildDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartwallet_build_duration_seconds",
			Help:    "Duration of transaction builds",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),
	}
}

func (m *Metrics) ObserveBuild(strategy, status string, started time.Time) {
	if m == nil {
		return
	}
	m.BuildsTotal.WithLabelValues(strategy, status).Inc()
	m.BuildDuration.WithLabelValues(strategy).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveDelegation(delegationType, outcome string) {
	if m == nil {
		return
	}
	m.DelegationsTotal.WithLabelValues(delegationType, outcome).Inc()
}
