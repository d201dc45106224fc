package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	queueSize    *prometheus.GaugeVec
	enqueueTotal *prometheus.CounterVec
	dequeueTotal *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	eventsTotal         *prometheus.CounterVec
	transformTotal      *prometheus.CounterVec
	transformDuration   *prometheus.HistogramVec
	validationErrors    prometheus.Counter
	activeSessions      prometheus.Gauge
	trackedScratchFiles prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			queueSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "queue_size",
					Help: "Current queue size by lane.",
				},
				[]string{"lane"},
			),
			enqueueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "enqueue_total",
					Help: "Total enqueue operations by lane.",
				},
				[]string{"lane"},
			),
			dequeueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dequeue_total",
					Help: "Total dequeue/completion operations by lane and status.",
				},
				[]string{"lane", "status"},
			),
			taskDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "task_duration_seconds",
					Help:    "Task execution duration in seconds by lane.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"lane"},
			),
			eventsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "events_total",
					Help: "Total inbound events by kind.",
				},
				[]string{"kind"},
			),
			transformTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "transformations_total",
					Help: "Total dispatched transformations by workflow and status.",
				},
				[]string{"workflow", "status"},
			),
			transformDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "transformation_duration_seconds",
					Help:    "Transformation duration in seconds by workflow.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"workflow"},
			),
			validationErrors: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "validation_errors_total",
					Help: "Total user input rejections.",
				},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Sessions currently in a non-idle workflow state.",
				},
			),
			trackedScratchFiles: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "tracked_scratch_files",
					Help: "Scratch files currently tracked by the ledger.",
				},
			),
		}

		prometheus.MustRegister(
			m.queueSize,
			m.enqueueTotal,
			m.dequeueTotal,
			m.taskDuration,
			m.eventsTotal,
			m.transformTotal,
			m.transformDuration,
			m.validationErrors,
			m.activeSessions,
			m.trackedScratchFiles,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordQueueEnqueue(lane string, queueSize int) {
	m := getMetrics()
	m.enqueueTotal.WithLabelValues(lane).Inc()
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func RecordQueueCompletion(lane string, duration time.Duration, success bool, queueSize int) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.dequeueTotal.WithLabelValues(lane, status).Inc()
	m.taskDuration.WithLabelValues(lane).Observe(duration.Seconds())
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func RecordEvent(kind string) {
	getMetrics().eventsTotal.WithLabelValues(kind).Inc()
}

func RecordTransformation(workflow string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.transformTotal.WithLabelValues(workflow, status).Inc()
	m.transformDuration.WithLabelValues(workflow).Observe(duration.Seconds())
}

func RecordValidationError() {
	getMetrics().validationErrors.Inc()
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func SetTrackedScratchFiles(count int) {
	getMetrics().trackedScratchFiles.Set(float64(count))
}
