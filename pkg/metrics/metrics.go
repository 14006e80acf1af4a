// Package metrics defines the Prometheus collectors for index construction
// and query serving and exposes an HTTP handler for scraping. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors of one process.
type Metrics struct {
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	QueryResultsCount    prometheus.Histogram
	HeadResultsTotal     *prometheus.CounterVec
	BudgetExhaustedTotal prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IndexSwitchesTotal   *prometheus.CounterVec
	IndexDocuments       *prometheus.GaugeVec
	IndexTerms           *prometheus.GaugeVec
	GenerationsInUse     prometheus.Gauge
	ConstructionsTotal   *prometheus.CounterVec
	ConstructionDuration prometheus.Histogram
	JournalEntriesTotal  *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Passing nil
// registers with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_queries_total",
				Help: "Total queries by outcome (ok, zero_result, budget_exhausted, error).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "index_query_latency_seconds",
				Help:    "Query latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_query_results_count",
				Help:    "Number of results returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		HeadResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_query_head_results_total",
				Help: "Results contributed by each query head.",
			},
			[]string{"head"},
		),
		BudgetExhaustedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_query_budget_exhausted_total",
				Help: "Queries that stopped early because their time budget ran out.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		IndexSwitchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_switches_total",
				Help: "Index generation switches by status (switched, noop, error).",
			},
			[]string{"status"},
		),
		IndexDocuments: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Documents in the live generation, per index (full, priority).",
			},
			[]string{"index"},
		),
		IndexTerms: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Terms in the live generation, per index (full, priority).",
			},
			[]string{"index"},
		),
		GenerationsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_generations_open",
				Help: "Generations whose files are still mapped.",
			},
		),
		ConstructionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_constructions_total",
				Help: "Index construction jobs by status.",
			},
			[]string{"status"},
		),
		ConstructionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_construction_duration_seconds",
				Help:    "Wall time of successful construction jobs.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
			},
		),
		JournalEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_entries_total",
				Help: "Journal entries consumed by status (written, invalid, error).",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.HeadResultsTotal,
		m.BudgetExhaustedTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexSwitchesTotal,
		m.IndexDocuments,
		m.IndexTerms,
		m.GenerationsInUse,
		m.ConstructionsTotal,
		m.ConstructionDuration,
		m.JournalEntriesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveQuery records one finished query.
func (m *Metrics) ObserveQuery(outcome, cacheStatus string, elapsed time.Duration, results int) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
	m.QueryLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	m.QueryResultsCount.Observe(float64(results))
	if outcome == "budget_exhausted" {
		m.BudgetExhaustedTotal.Inc()
	}
}

func (m *Metrics) ObserveHead(head string, results int) {
	if m == nil {
		return
	}
	m.HeadResultsTotal.WithLabelValues(head).Add(float64(results))
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHitsTotal.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) IndexSwitched(status string) {
	if m != nil {
		m.IndexSwitchesTotal.WithLabelValues(status).Inc()
	}
}

// SetIndexSize publishes the size of the live generation of one index.
func (m *Metrics) SetIndexSize(index string, documents int64, terms int) {
	if m == nil {
		return
	}
	m.IndexDocuments.WithLabelValues(index).Set(float64(documents))
	m.IndexTerms.WithLabelValues(index).Set(float64(terms))
}

func (m *Metrics) GenerationOpened() {
	if m != nil {
		m.GenerationsInUse.Inc()
	}
}

func (m *Metrics) GenerationClosed() {
	if m != nil {
		m.GenerationsInUse.Dec()
	}
}

func (m *Metrics) ObserveConstruction(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ConstructionsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.ConstructionDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) JournalEntry(status string) {
	if m != nil {
		m.JournalEntriesTotal.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) SetCircuitState(name string, state int) {
	if m != nil {
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	}
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
