package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

// Collector holds all Prometheus metrics of the orchestrator. It satisfies
// the recorder interfaces of the cache store, the worker pool, the
// prefetch scheduler and the invalidator.
type Collector struct {
	registry *prometheus.Registry

	// Cache metrics
	CacheLookups   *prometheus.CounterVec
	CacheFetches   *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	CacheEvictions *prometheus.CounterVec
	CacheEntries   prometheus.Gauge

	// Prefetch and invalidation metrics
	PrefetchOutcomes *prometheus.CounterVec
	Invalidations    *prometheus.CounterVec

	// Worker pool metrics
	PoolSubmissions *prometheus.CounterVec
	PoolTasks       *prometheus.CounterVec
	PoolPanics      *prometheus.CounterVec
	PoolQueueDepth  *prometheus.GaugeVec

	// Fetch collaborator metrics
	BreakerState *prometheus.GaugeVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewCollector creates a collector registering its metrics, plus the Go
// runtime and process collectors, on a fresh registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache resolutions by category and outcome (hit, stale, miss, joined)",
			},
			[]string{"category", "outcome"},
		),
		CacheFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "fetches_total",
				Help:      "Completed fetches by category and status",
			},
			[]string{"category", "status"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "fetch_duration_seconds",
				Help:      "Fetch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"category"},
		),
		CacheEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Entries evicted after their retention window",
			},
			[]string{"category"},
		),
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "entries",
				Help:      "Entries held by the store at the last sweep",
			},
		),
		PrefetchOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "prefetch",
				Name:      "outcomes_total",
				Help:      "Prefetch decisions by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		Invalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "invalidations_total",
				Help:      "Invalidation requests by category",
			},
			[]string{"category"},
		),
		PoolSubmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "submissions_total",
				Help:      "Task submissions by pool and acceptance",
			},
			[]string{"pool", "accepted"},
		),
		PoolTasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "tasks_total",
				Help:      "Executed tasks by pool and status",
			},
			[]string{"pool", "status"},
		),
		PoolPanics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "worker_panics_total",
				Help:      "Recovered worker panics",
			},
			[]string{"pool"},
		),
		PoolQueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "queue_depth",
				Help:      "Tasks waiting in the queue",
			},
			[]string{"pool"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state per fetcher (0 closed, 1 half-open, 2 open)",
			},
			[]string{"fetcher"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		c.CacheLookups,
		c.CacheFetches,
		c.FetchDuration,
		c.CacheEvictions,
		c.CacheEntries,
		c.PrefetchOutcomes,
		c.Invalidations,
		c.PoolSubmissions,
		c.PoolTasks,
		c.PoolPanics,
		c.PoolQueueDepth,
		c.BreakerState,
		c.HTTPRequests,
		c.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// GetRegistry returns the Prometheus registry for this collector.
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// ============================================================================
// CACHE STORE RECORDER
// ============================================================================

func (c *Collector) RecordLookup(category record.Category, outcome string) {
	c.CacheLookups.WithLabelValues(category.String(), outcome).Inc()
}

func (c *Collector) RecordFetch(category record.Category, err error, duration time.Duration) {
	c.CacheFetches.WithLabelValues(category.String(), statusLabel(err)).Inc()
	c.FetchDuration.WithLabelValues(category.String()).Observe(duration.Seconds())
}

func (c *Collector) RecordEviction(category record.Category) {
	c.CacheEvictions.WithLabelValues(category.String()).Inc()
}

func (c *Collector) RecordEntries(count int) {
	c.CacheEntries.Set(float64(count))
}

// ============================================================================
// PREFETCH AND INVALIDATION RECORDERS
// ============================================================================

func (c *Collector) RecordPrefetch(category record.Category, outcome string) {
	label := "none"
	if category.Valid() {
		label = category.String()
	}
	c.PrefetchOutcomes.WithLabelValues(label, outcome).Inc()
}

// RecordInvalidation labels whole-subject invalidations "all".
func (c *Collector) RecordInvalidation(category record.Category) {
	label := "all"
	if category.Valid() {
		label = category.String()
	}
	c.Invalidations.WithLabelValues(label).Inc()
}

// ============================================================================
// WORKER POOL RECORDER
// ============================================================================

func (c *Collector) RecordTaskSubmission(pool string, accepted bool) {
	c.PoolSubmissions.WithLabelValues(pool, strconv.FormatBool(accepted)).Inc()
}

func (c *Collector) RecordTaskExecution(pool string, _ time.Duration, err error) {
	c.PoolTasks.WithLabelValues(pool, statusLabel(err)).Inc()
}

func (c *Collector) RecordWorkerPanic(pool string) {
	c.PoolPanics.WithLabelValues(pool).Inc()
}

func (c *Collector) RecordQueueDepth(pool string, depth int) {
	c.PoolQueueDepth.WithLabelValues(pool).Set(float64(depth))
}

// ============================================================================
// FETCH COLLABORATOR RECORDER
// ============================================================================

// RecordBreakerState stores the numeric state of a fetcher's breaker.
func (c *Collector) RecordBreakerState(fetcher string, state int) {
	c.BreakerState.WithLabelValues(fetcher).Set(float64(state))
}

// statusLabel maps an error to a low-cardinality label: "success" or the
// error code.
func statusLabel(err error) string {
	if err == nil {
		return "success"
	}
	if code := errors.CodeOf(err); code != "" {
		return code
	}
	return "error"
}
