package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/trip-control-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP, cache and domain operations.
type MetricsService struct {
	registry                *prometheus.Registry
	handler                 http.Handler
	requestDuration         *prometheus.HistogramVec
	requestTotal            *prometheus.CounterVec
	cacheLatency            prometheus.Observer
	cacheWrite              prometheus.Observer
	cacheHitRatio           prometheus.Gauge
	cacheHits               prometheus.Counter
	cacheMisses             prometheus.Counter
	cacheInvalidateFailures prometheus.Counter
	dbQueryDuration         *prometheus.HistogramVec

	reconciliationRuns     *prometheus.CounterVec
	reconciliationDuration prometheus.Observer
	reconciliationRows     *prometheus.GaugeVec
	scheduleEdits          *prometheus.CounterVec
	propagatedWrites       prometheus.Counter
	syncJobs               *prometheus.CounterVec
	syncedTrips            *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

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

	cacheInvalidateFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_invalidate_failures_total",
		Help: "Cache invalidations that failed and may leave stale entries until TTL",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	reconciliationRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_runs_total",
		Help: "Reconciliation runs by outcome",
	}, []string{"outcome"})

	reconciliationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconciliation_duration_seconds",
		Help:    "Wall-clock duration of reconciliation runs",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	reconciliationRows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reconciliation_last_rows",
		Help: "Rows per status produced by the last reconciliation run",
	}, []string{"status"})

	scheduleEdits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_edits_total",
		Help: "Overlay field writes by field",
	}, []string{"field"})

	propagatedWrites := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_propagated_writes_total",
		Help: "Overlay writes applied to later trips by propagation",
	})

	syncJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trip_sync_jobs_total",
		Help: "Trip source sync attempts by source and outcome",
	}, []string{"source", "outcome"})

	syncedTrips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trip_sync_trips_total",
		Help: "Trips stored by sync, per source",
	}, []string{"source"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, cacheInvalidateFailures, dbQueryDuration,
		reconciliationRuns, reconciliationDuration, reconciliationRows, scheduleEdits, propagatedWrites, syncJobs, syncedTrips, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:                registry,
		handler:                 handler,
		requestDuration:         requestDuration,
		requestTotal:            requestTotal,
		cacheLatency:            cacheLatency,
		cacheWrite:              cacheWrite,
		cacheHitRatio:           cacheHitRatio,
		cacheHits:               cacheHits,
		cacheMisses:             cacheMisses,
		cacheInvalidateFailures: cacheInvalidateFailures,
		dbQueryDuration:         dbQueryDuration,
		reconciliationRuns:      reconciliationRuns,
		reconciliationDuration:  reconciliationDuration,
		reconciliationRows:      reconciliationRows,
		scheduleEdits:           scheduleEdits,
		propagatedWrites:        propagatedWrites,
		syncJobs:                syncJobs,
		syncedTrips:             syncedTrips,
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

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
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

// RecordCacheInvalidateFailure counts an invalidation the cache backend rejected.
func (m *MetricsService) RecordCacheInvalidateFailure() {
	if m == nil {
		return
	}
	m.cacheInvalidateFailures.Inc()
}

// TimeDBQuery runs fn and records its duration under label, whatever the outcome.
func (m *MetricsService) TimeDBQuery(label string, fn func() error) error {
	started := time.Now()
	err := fn()
	m.ObserveDBQuery(label, time.Since(started))
	return err
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveReconciliation records the outcome of one run ("ok", "no_data", "conflict", "error").
func (m *MetricsService) ObserveReconciliation(outcome string, duration time.Duration, counts *RunCounts) {
	if m == nil {
		return
	}
	m.reconciliationRuns.WithLabelValues(outcome).Inc()
	m.reconciliationDuration.Observe(duration.Seconds())
	if counts == nil {
		return
	}
	m.reconciliationRows.WithLabelValues(string(models.StatusCompatible)).Set(float64(counts.Compatible))
	m.reconciliationRows.WithLabelValues(string(models.StatusDivergent)).Set(float64(counts.Divergent))
	m.reconciliationRows.WithLabelValues(string(models.StatusTimeDivergent)).Set(float64(counts.TimeDivergent))
	m.reconciliationRows.WithLabelValues(string(models.StatusTransdataOnly)).Set(float64(counts.TransdataOnly))
	m.reconciliationRows.WithLabelValues(string(models.StatusGlobusOnly)).Set(float64(counts.GlobusOnly))
}

// ObserveScheduleEdit counts overlay writes of one field, split into anchor and propagated writes.
func (m *MetricsService) ObserveScheduleEdit(field models.EditField, anchorWrites, propagated int) {
	if m == nil {
		return
	}
	m.scheduleEdits.WithLabelValues(string(field)).Add(float64(anchorWrites + propagated))
	m.propagatedWrites.Add(float64(propagated))
}

// ObserveSync records one sync attempt and the trips it stored.
func (m *MetricsService) ObserveSync(source models.TripSource, outcome string, trips int) {
	if m == nil {
		return
	}
	m.syncJobs.WithLabelValues(string(source), outcome).Inc()
	if trips > 0 {
		m.syncedTrips.WithLabelValues(string(source)).Add(float64(trips))
	}
}
