package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/task-scheduler-api/internal/dto"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	solveDuration   *prometheus.HistogramVec
	solveTotal      *prometheus.CounterVec
	solveTasks      prometheus.Histogram
	solveBranches   prometheus.Histogram
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	cacheHitCount      uint64
	cacheMissCount     uint64
	requestCount       uint64
	solveCount         uint64
	solveFoundCount    uint64
	solveDurationTotal uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status", "solver", "outcome"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status", "solver", "outcome"})

	solveDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_solve_duration_seconds",
		Help:    "Wall time of the optimizer call per request",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30},
	}, []string{"solver", "status"})

	solveTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_solves_total",
		Help: "Schedule requests by solver and outcome status",
	}, []string{"solver", "status"})

	solveTasks := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_request_tasks",
		Help:    "Number of tasks per schedule request",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	solveBranches := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_solver_branches",
		Help:    "Search branches reported by the optimizer",
		Buckets: prometheus.ExponentialBuckets(1, 10, 8),
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, solveDuration, solveTotal, solveTasks, solveBranches,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		solveDuration:   solveDuration,
		solveTotal:      solveTotal,
		solveTasks:      solveTasks,
		solveBranches:   solveBranches,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// HTTPObservation describes one served request. Solver and Outcome are
// "none" for requests that never reached the optimizer.
type HTTPObservation struct {
	Method   string
	Path     string
	Status   int
	Solver   string
	Outcome  string
	Duration time.Duration
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(obs HTTPObservation) {
	if m == nil {
		return
	}
	labels := []string{obs.Method, obs.Path, fmt.Sprintf("%d", obs.Status), obs.Solver, obs.Outcome}
	m.requestDuration.WithLabelValues(labels...).Observe(obs.Duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// ObserveSolve records one optimizer call.
func (m *MetricsService) ObserveSolve(solver, status string, tasks int, branches int64, found bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues(solver, status).Observe(duration.Seconds())
	m.solveTotal.WithLabelValues(solver, status).Inc()
	m.solveTasks.Observe(float64(tasks))
	m.solveBranches.Observe(float64(branches))
	atomic.AddUint64(&m.solveCount, 1)
	atomic.AddUint64(&m.solveDurationTotal, uint64(duration.Nanoseconds()))
	if found {
		atomic.AddUint64(&m.solveFoundCount, 1)
	}
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// Snapshot returns aggregated counters for the metrics summary endpoint.
func (m *MetricsService) Snapshot() dto.MetricsSnapshot {
	if m == nil {
		return dto.MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	solves := atomic.LoadUint64(&m.solveCount)
	found := atomic.LoadUint64(&m.solveFoundCount)
	solveDuration := atomic.LoadUint64(&m.solveDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgSolveMs, foundRatio float64
	if solves > 0 {
		avgSolveMs = float64(solveDuration) / float64(solves) / float64(time.Millisecond)
		foundRatio = float64(found) / float64(solves)
	}

	return dto.MetricsSnapshot{
		RequestsTotal:      atomic.LoadUint64(&m.requestCount),
		SolvesTotal:        solves,
		FoundRatio:         foundRatio,
		AverageSolveTimeMs: avgSolveMs,
		CacheHits:          hits,
		CacheMisses:        misses,
		CacheHitRatio:      cacheRatio,
		Goroutines:         runtime.NumGoroutine(),
		GeneratedAt:        time.Now().UTC(),
	}
}
