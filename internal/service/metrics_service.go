package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-attendance-lock/internal/models"
)

// Unlock request outcomes recorded by MetricsService.
const (
	UnlockOutcomeCreated    = "created"
	UnlockOutcomeConflict   = "conflict"
	UnlockOutcomeIneligible = "ineligible"
	UnlockOutcomeInvalid    = "invalid"
	UnlockOutcomeError      = "error"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the unlock workflow.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	unlockRequests    *prometheus.CounterVec
	unlockDecisions   *prometheus.CounterVec
	unlockReplays     *prometheus.CounterVec
	effectiveStatuses *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
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

	unlockRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unlock_requests_total",
		Help: "Unlock request submissions by outcome",
	}, []string{"outcome"})

	unlockDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unlock_decisions_total",
		Help: "Unlock request resolutions by decision",
	}, []string{"decision"})

	unlockReplays := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unlock_decision_replays_total",
		Help: "Decisions submitted for requests that were already resolved",
	}, []string{"stored_decision"})

	effectiveStatuses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_effective_status_total",
		Help: "Effective statuses served to callers",
	}, []string{"status"})

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

	registry.MustRegister(requestDuration, requestTotal, unlockRequests, unlockDecisions, unlockReplays,
		effectiveStatuses, cacheLatency, cacheWrite, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		unlockRequests:    unlockRequests,
		unlockDecisions:   unlockDecisions,
		unlockReplays:     unlockReplays,
		effectiveStatuses: effectiveStatuses,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
	}
}

// Registry exposes the underlying registry, mostly for tests.
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

// RecordUnlockRequest counts a submission by outcome.
func (m *MetricsService) RecordUnlockRequest(outcome string) {
	if m == nil {
		return
	}
	m.unlockRequests.WithLabelValues(outcome).Inc()
}

// RecordUnlockDecision counts a resolution that changed state.
func (m *MetricsService) RecordUnlockDecision(decision models.UnlockRequestStatus) {
	if m == nil {
		return
	}
	m.unlockDecisions.WithLabelValues(string(decision)).Inc()
}

// RecordUnlockReplay counts a decision on an already resolved request.
func (m *MetricsService) RecordUnlockReplay(stored models.UnlockRequestStatus) {
	if m == nil {
		return
	}
	m.unlockReplays.WithLabelValues(string(stored)).Inc()
}

// RecordEffectiveStatus counts a resolved effective status.
func (m *MetricsService) RecordEffectiveStatus(status models.EffectiveStatus) {
	if m == nil {
		return
	}
	m.effectiveStatuses.WithLabelValues(string(status)).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}
