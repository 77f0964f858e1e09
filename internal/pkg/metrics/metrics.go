package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes Prometheus collectors for payroll and settlement runs.
type Metrics struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	staffFailures prometheus.Counter
	lockConflicts *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payroll_engine_operations_total",
		Help: "Engine operations partitioned by operation name and outcome.",
	}, []string{"operation", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payroll_engine_operation_duration_seconds",
		Help:    "Duration in seconds of engine operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	staffFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payroll_engine_staff_failures_total",
		Help: "Staff entries left out of a cycle because of incomplete data.",
	})
	lockConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payroll_engine_lock_conflicts_total",
		Help: "Requests rejected because the resource lock was held.",
	}, []string{"resource"})
	registry.MustRegister(runs, duration, staffFailures, lockConflicts,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Metrics{
		registry:      registry,
		runs:          runs,
		duration:      duration,
		staffFailures: staffFailures,
		lockConflicts: lockConflicts,
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Tracker records one operation run.
type Tracker struct {
	metrics   *Metrics
	operation string
	start     time.Time
}

func (m *Metrics) Track(operation string) *Tracker {
	return &Tracker{metrics: m, operation: operation, start: time.Now()}
}

// End records the outcome and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	t.metrics.runs.WithLabelValues(t.operation, status).Inc()
	t.metrics.duration.WithLabelValues(t.operation).Observe(time.Since(t.start).Seconds())
	return err
}

func (m *Metrics) AddStaffFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.staffFailures.Add(float64(n))
}

func (m *Metrics) LockConflict(resource string) {
	if m == nil {
		return
	}
	m.lockConflicts.WithLabelValues(resource).Inc()
}
