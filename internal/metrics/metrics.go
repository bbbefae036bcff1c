package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emotionmirror",
		Name:      "pipeline_runs_total",
		Help:      "Reflection pipeline runs by result (success, failure, cancelled)",
	}, []string{"result"})

	stepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emotionmirror",
		Name:      "pipeline_step_failures_total",
		Help:      "Failed reflection pipeline steps",
	}, []string{"step"})

	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "emotionmirror",
		Name:      "pipeline_step_duration_seconds",
		Help:      "Latency of reflection pipeline steps",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"step"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "emotionmirror",
		Name:      "active_sessions",
		Help:      "Browser sessions currently held in memory",
	})

	cameraErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "emotionmirror",
		Name:      "camera_access_errors_total",
		Help:      "Camera access failures reported by browsers",
	})
)

const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultCancelled = "cancelled"
)

func RecordPipelineRun(result string) {
	pipelineRuns.WithLabelValues(result).Inc()
}

// ObserveStep records the latency of a pipeline step and counts it as failed when failed is set.
func ObserveStep(step string, started time.Time, failed bool) {
	stepDuration.WithLabelValues(step).Observe(time.Since(started).Seconds())
	if failed {
		stepFailures.WithLabelValues(step).Inc()
	}
}

func SessionOpened() { activeSessions.Inc() }

func SessionClosed() { activeSessions.Dec() }

func RecordCameraError() { cameraErrors.Inc() }
