package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for HTTP, cache and bulletin engine instrumentation.
// All methods are safe on a nil receiver.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	transitions    *prometheus.CounterVec
	batchDuration  prometheus.Observer
	batchStudents  *prometheus.CounterVec
	rankingPass    prometheus.Observer
	rankQueueDepth prometheus.Gauge

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the collectors on a private registry.
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
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
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

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulletin_transitions_total",
		Help: "Bulletin lifecycle operations by action and result",
	}, []string{"action", "result"})

	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bulletin_batch_duration_seconds",
		Help:    "Wall time of batch bulletin generation",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	batchStudents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulletin_batch_students_total",
		Help: "Per-student batch outcomes",
	}, []string{"action", "result"})

	rankingPass := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bulletin_ranking_pass_seconds",
		Help:    "Duration of cohort ranking passes",
		Buckets: prometheus.DefBuckets,
	})

	rankQueueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bulletin_rank_queue_scheduled",
		Help: "Cohort re-rank jobs scheduled and not yet started",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		transitions, batchDuration, batchStudents, rankingPass, rankQueueDepth, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		transitions:     transitions,
		batchDuration:   batchDuration,
		batchStudents:   batchStudents,
		rankingPass:     rankingPass,
		rankQueueDepth:  rankQueueDepth,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordTransition counts a lifecycle operation outcome.
func (m *MetricsService) RecordTransition(action BulletinAction, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(action), resultLabel(err)).Inc()
}

// RecordBatchStudent counts one student's batch outcome.
func (m *MetricsService) RecordBatchStudent(action PlanAction, err error) {
	if m == nil {
		return
	}
	m.batchStudents.WithLabelValues(string(action), resultLabel(err)).Inc()
}

// ObserveBatch records the duration of a batch run.
func (m *MetricsService) ObserveBatch(duration time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(duration.Seconds())
}

// ObserveRankingPass records the duration of a cohort ranking pass.
func (m *MetricsService) ObserveRankingPass(duration time.Duration) {
	if m == nil {
		return
	}
	m.rankingPass.Observe(duration.Seconds())
}

// RankJobScheduled adjusts the scheduled re-rank gauge by delta.
func (m *MetricsService) RankJobScheduled(delta float64) {
	if m == nil {
		return
	}
	m.rankQueueDepth.Add(delta)
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
