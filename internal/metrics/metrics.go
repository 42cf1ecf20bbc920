// Package metrics exposes Prometheus metrics for sweeps, page fetches,
// upserts and background tasks.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pair outcomes.
const (
	PairOK      = "ok"
	PairFailed  = "failed"
	PairSkipped = "skipped"
)

type Metrics struct {
	registry *prometheus.Registry

	sweepsTotal      *prometheus.CounterVec
	sweepDuration    *prometheus.HistogramVec
	pairsTotal       *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	showingsUpserted *prometheus.CounterVec
	showingsPruned   prometheus.Counter
	tasksTotal       *prometheus.CounterVec
	lastSweep        *prometheus.GaugeVec
}

// New creates the metrics on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.sweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showtimes_sweeps_total",
			Help: "Total number of finished sweeps",
		},
		[]string{"chain", "status"},
	)
	m.sweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "showtimes_sweep_duration_seconds",
			Help: "Wall time of a full sweep",
			// 1 minute to about 4 hours
			Buckets: prometheus.ExponentialBuckets(60, 2, 8),
		},
		[]string{"chain"},
	)
	m.pairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showtimes_sweep_pairs_total",
			Help: "Location/day pairs processed by sweeps",
		},
		[]string{"chain", "outcome"},
	)
	m.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "showtimes_page_fetch_duration_seconds",
			Help: "Time to render and extract one listing page",
			// 0.5s to about 2 minutes
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 9),
		},
		[]string{"chain"},
	)
	m.showingsUpserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showtimes_showings_upserted_total",
			Help: "Showing candidates reconciled, by whether a row was added",
		},
		[]string{"chain", "result"},
	)
	m.showingsPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "showtimes_showings_pruned_total",
		Help: "Past showings deleted by pruning",
	})
	m.tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showtimes_tasks_total",
			Help: "Background tasks handled by the worker pool",
		},
		[]string{"kind", "outcome"},
	)
	m.lastSweep = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "showtimes_last_sweep_timestamp_seconds",
			Help: "Unix time the last sweep of a chain finished",
		},
		[]string{"chain"},
	)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sweepsTotal,
		m.sweepDuration,
		m.pairsTotal,
		m.fetchDuration,
		m.showingsUpserted,
		m.showingsPruned,
		m.tasksTotal,
		m.lastSweep,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The Observe and Add methods are no-ops on a nil *Metrics.
func (m *Metrics) ObserveSweep(chain, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sweepsTotal.WithLabelValues(chain, status).Inc()
	m.sweepDuration.WithLabelValues(chain).Observe(elapsed.Seconds())
	m.lastSweep.WithLabelValues(chain).SetToCurrentTime()
}

func (m *Metrics) ObservePair(chain, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.pairsTotal.WithLabelValues(chain, outcome).Inc()
	if outcome != PairSkipped {
		m.fetchDuration.WithLabelValues(chain).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) ObserveUpsert(chain string, added bool) {
	if m == nil {
		return
	}
	result := "existing"
	if added {
		result = "added"
	}
	m.showingsUpserted.WithLabelValues(chain, result).Inc()
}

func (m *Metrics) AddPruned(n int64) {
	if m == nil {
		return
	}
	m.showingsPruned.Add(float64(n))
}

func (m *Metrics) ObserveTask(kind, outcome string) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(kind, outcome).Inc()
}
