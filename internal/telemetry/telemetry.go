// Package telemetry provides Prometheus metrics and tracing for the
// marketplace services.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "marketplace"

// Metrics holds all marketplace Prometheus metrics.
type Metrics struct {
	// Task metrics
	TasksProcessed *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	TasksRetried   *prometheus.CounterVec
	TasksDead      *prometheus.CounterVec
	ActiveWorkers  prometheus.Gauge

	// Indexing metrics
	DocumentsIndexed *prometheus.CounterVec
	BatchesFailed    *prometheus.CounterVec

	// Global totals metrics
	TotalsComputed  *prometheus.CounterVec
	SecondaryWrites *prometheus.CounterVec

	// Search metrics
	Searches       *prometheus.CounterVec
	SearchDuration prometheus.Histogram
}

// Provider wraps telemetry providers.
type Provider struct {
	Tracer   trace.Tracer
	Metrics  *Metrics
	Registry *prometheus.Registry
}

// NewProvider initializes telemetry on a fresh registry that also carries
// the Go runtime and process collectors.
func NewProvider() *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Provider{
		Tracer:   otel.Tracer(serviceName),
		Metrics:  NewMetrics(reg),
		Registry: reg,
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{})
}

// NewMetrics registers every metric on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}
	factory := promauto.With(reg)
	initTaskMetrics(m, factory)
	initIndexingMetrics(m, factory)
	initTotalsMetrics(m, factory)
	initSearchMetrics(m, factory)
	return m
}

func initTaskMetrics(m *Metrics, f promauto.Factory) {
	m.TasksProcessed = f.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_tasks_processed_total",
		Help: "Tasks handled by the worker pool",
	}, []string{"kind", "outcome"})

	m.TaskDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketplace_task_duration_seconds",
		Help:    "Time to run a single task",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"kind"})

	m.TasksRetried = f.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_tasks_retried_total",
		Help: "Tasks scheduled for another attempt",
	}, []string{"kind"})

	m.TasksDead = f.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_tasks_dead_lettered_total",
		Help: "Tasks moved to the dead-letter stream after exhausting retries",
	}, []string{"kind"})

	m.ActiveWorkers = f.NewGauge(prometheus.GaugeOpts{
		Name: "marketplace_active_workers",
		Help: "Currently running worker goroutines",
	})
}

func initIndexingMetrics(m *Metrics, f promauto.Factory) {
	m.DocumentsIndexed = f.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_documents_indexed_total",
		Help: "Statistics documents written to the index",
	}, []string{"kind"})

	m.BatchesFailed = f.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_index_batches_failed_total",
		Help: "Indexing batches that failed and were rescheduled",
	}, []string{"kind"})
}

func initTotalsMetrics(m *Metrics, f promauto.Factory) {
	m.TotalsComputed = f.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_global_totals_total",
		Help: "Global totals jobs by outcome",
	}, []string{"job", "outcome"})

	m.SecondaryWrites = f.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_secondary_writes_total",
		Help: "Writes to the secondary metrics store by outcome",
	}, []string{"outcome"})
}

func initSearchMetrics(m *Metrics, f promauto.Factory) {
	m.Searches = f.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_searches_total",
		Help: "Search requests by outcome",
	}, []string{"endpoint", "outcome"})

	m.SearchDuration = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketplace_search_duration_seconds",
		Help:    "Time to answer a search request",
		Buckets: prometheus.DefBuckets,
	})
}
