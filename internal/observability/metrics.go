// Package observability holds the Prometheus instrumentation for the
// hot-spot pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for
// the detection pipeline.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec   // labels: outcome={ok,error}
	ClustersFound   *prometheus.HistogramVec // labels: kind={current,predicted}
	RunDuration     prometheus.Histogram
	ForecastsFailed prometheus.Counter

	// External lookup metrics.
	LookupRequests *prometheus.CounterVec   // labels: kind={organizations,events}, outcome={success,error,empty}
	LookupDuration *prometheus.HistogramVec // labels: kind={organizations,events}
	LookupCache    *prometheus.CounterVec   // labels: kind, result={hit,miss}

	RefinementFactor prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the given
// registerer. Pass prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotspot",
			Name:      "runs_total",
			Help:      "Total detection pipeline runs by outcome.",
		}, []string{"outcome"}),
		ClustersFound: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hotspot",
			Name:      "clusters_found",
			Help:      "Number of clusters detected per run.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}, []string{"kind"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hotspot",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete detect-refine-report run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ForecastsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hotspot",
			Name:      "forecasts_failed_total",
			Help:      "Runs where the forecaster was unavailable and only the current report was produced.",
		}),
		LookupRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotspot",
			Name:      "lookup_requests_total",
			Help:      "External context lookups by kind and outcome.",
		}, []string{"kind", "outcome"}),
		LookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hotspot",
			Name:      "lookup_duration_seconds",
			Help:      "External lookup latency by kind.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}, []string{"kind"}),
		LookupCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotspot",
			Name:      "lookup_cache_total",
			Help:      "Lookup cache hits and misses by kind.",
		}, []string{"kind", "result"}),
		RefinementFactor: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hotspot",
			Name:      "refinement_factor",
			Help:      "Distribution of per-cluster refinement factors.",
			Buckets:   []float64{1.0, 1.2, 1.5, 1.8, 2.1, 2.7, 3.3},
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.ClustersFound,
		m.RunDuration,
		m.ForecastsFailed,
		m.LookupRequests,
		m.LookupDuration,
		m.LookupCache,
		m.RefinementFactor,
	)
	return m
}
