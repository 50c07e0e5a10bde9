package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

// Guard outcomes recorded in metrics and logs.
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeStale     = "stale"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
	OutcomeClean     = "clean"
	OutcomeWarning   = "warning"
	OutcomeBlocking  = "blocking"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	detections        *prometheus.CounterVec
	detectionDuration *prometheus.HistogramVec
	conflicts         *prometheus.CounterVec
	guardOutcomes     *prometheus.CounterVec
	lockWait          prometheus.Histogram

	requestCount     uint64
	detectionCount   uint64
	detectionNanos   uint64
	blockingCount    uint64
	committedCount   uint64
	rejectedCount    uint64
	staleCount       uint64
	roomConflicts    uint64
	facultyConflicts uint64
	studentConflicts uint64
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

	detections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_detections_total",
		Help: "Conflict detections by allocation kind and outcome",
	}, []string{"kind", "outcome"})

	detectionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduling_detection_duration_seconds",
		Help:    "Time spent in conflict detection",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}, []string{"kind"})

	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_conflicts_total",
		Help: "Conflicts reported by resource dimension",
	}, []string{"type"})

	guardOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_guard_outcomes_total",
		Help: "Mutation guard results",
	}, []string{"kind", "outcome"})

	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduling_lock_wait_seconds",
		Help:    "Time spent acquiring per-resource write locks",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, detections, detectionDuration, conflicts, guardOutcomes, lockWait, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		detections:        detections,
		detectionDuration: detectionDuration,
		conflicts:         conflicts,
		guardOutcomes:     guardOutcomes,
		lockWait:          lockWait,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// ObserveDetection records one detection run and the conflicts it produced.
func (m *MetricsService) ObserveDetection(kind models.AllocationKind, report *models.ConflictReport, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeClean
	switch {
	case report == nil:
		outcome = OutcomeInvalid
	case report.HasBlockingConflict:
		outcome = OutcomeBlocking
		atomic.AddUint64(&m.blockingCount, 1)
	case len(report.Conflicts) > 0:
		outcome = OutcomeWarning
	}
	m.detections.WithLabelValues(string(kind), outcome).Inc()
	m.detectionDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
	atomic.AddUint64(&m.detectionCount, 1)
	atomic.AddUint64(&m.detectionNanos, uint64(duration.Nanoseconds()))

	for t, n := range report.CountByType() {
		m.conflicts.WithLabelValues(string(t)).Add(float64(n))
		switch t {
		case models.ConflictTypeRoom:
			atomic.AddUint64(&m.roomConflicts, uint64(n))
		case models.ConflictTypeFaculty:
			atomic.AddUint64(&m.facultyConflicts, uint64(n))
		case models.ConflictTypeStudent:
			atomic.AddUint64(&m.studentConflicts, uint64(n))
		}
	}
}

// ObserveGuardOutcome counts mutation guard results.
func (m *MetricsService) ObserveGuardOutcome(kind models.AllocationKind, outcome string) {
	if m == nil {
		return
	}
	m.guardOutcomes.WithLabelValues(string(kind), outcome).Inc()
	switch outcome {
	case OutcomeCommitted:
		atomic.AddUint64(&m.committedCount, 1)
	case OutcomeRejected:
		atomic.AddUint64(&m.rejectedCount, 1)
	case OutcomeStale:
		atomic.AddUint64(&m.staleCount, 1)
	}
}

// ObserveLockWait tracks how long writers waited for resource locks.
func (m *MetricsService) ObserveLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(duration.Seconds())
}

// Snapshot returns aggregated counters suitable for the metrics summary endpoint.
func (m *MetricsService) Snapshot() models.SchedulingMetrics {
	if m == nil {
		return models.SchedulingMetrics{}
	}
	detections := atomic.LoadUint64(&m.detectionCount)
	nanos := atomic.LoadUint64(&m.detectionNanos)

	var avgDetectionMs float64
	if detections > 0 {
		avgDetectionMs = float64(nanos) / float64(detections) / float64(time.Millisecond)
	}

	return models.SchedulingMetrics{
		RequestsTotal:      atomic.LoadUint64(&m.requestCount),
		Detections:         detections,
		BlockingDetections: atomic.LoadUint64(&m.blockingCount),
		AverageDetectionMs: avgDetectionMs,
		Committed:          atomic.LoadUint64(&m.committedCount),
		Rejected:           atomic.LoadUint64(&m.rejectedCount),
		StaleSnapshots:     atomic.LoadUint64(&m.staleCount),
		RoomConflicts:      atomic.LoadUint64(&m.roomConflicts),
		FacultyConflicts:   atomic.LoadUint64(&m.facultyConflicts),
		StudentConflicts:   atomic.LoadUint64(&m.studentConflicts),
		Goroutines:         runtime.NumGoroutine(),
		GeneratedAt:        time.Now().UTC(),
	}
}
