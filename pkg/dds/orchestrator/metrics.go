package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	runsTotal         *prometheus.CounterVec
	evaluationsTotal  *prometheus.CounterVec
	fetchRetriesTotal *prometheus.CounterVec
	tokenRefreshTotal *prometheus.CounterVec
	flowWriteDuration prometheus.Histogram
}

// NewMetrics registers the orchestrator metrics with reg. A nil reg uses the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dds_injection_runs_total",
				Help: "Variable injection runs by outcome",
			},
			[]string{"status"},
		),
		evaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dds_variable_evaluations_total",
				Help: "Custom variable evaluations by provider and terminal state",
			},
			[]string{"provider", "state"},
		),
		fetchRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dds_provider_fetch_retries_total",
				Help: "Retried provider fetches",
			},
			[]string{"provider"},
		),
		tokenRefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dds_token_refreshes_total",
				Help: "OAuth token refreshes by provider and result",
			},
			[]string{"provider", "result"},
		),
		flowWriteDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dds_flow_write_duration_seconds",
				Help:    "Duration of the locked flow read-modify-write",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}
