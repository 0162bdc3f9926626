// Package observability collects Prometheus metrics for the monitoring
// pipeline.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors, registered on a private
// registry so tests can create instances freely.
type Metrics struct {
	registry *prometheus.Registry

	FramesProcessed     prometheus.Counter
	CaptureFailures     prometheus.Counter
	Detections          *prometheus.CounterVec
	Identifications     *prometheus.CounterVec
	HealthAssessments   *prometheus.CounterVec
	AttendanceMarked    prometheus.Counter
	AttendanceDebounced prometheus.Counter
	AlertsCreated       *prometheus.CounterVec
	PipelineDuration    prometheus.Histogram
	MQTTConnected       prometheus.Gauge
	MQTTPublishErrors   prometheus.Counter
}

// NewMetrics creates and registers the pipeline collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "herdwatch_frames_processed_total",
			Help: "Total number of frames captured and fed to the pipeline",
		}),
		CaptureFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "herdwatch_capture_failures_total",
			Help: "Total number of failed or timed out frame captures",
		}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herdwatch_detections_total",
			Help: "Total number of animal detections by species",
		}, []string{"species"}),
		Identifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herdwatch_identifications_total",
			Help: "Total number of identification outcomes by method",
		}, []string{"method"}),
		HealthAssessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herdwatch_health_assessments_total",
			Help: "Total number of health assessments by status",
		}, []string{"status"}),
		AttendanceMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "herdwatch_attendance_marked_total",
			Help: "Total number of attendance ledger marks attempted",
		}),
		AttendanceDebounced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "herdwatch_attendance_debounced_total",
			Help: "Total number of attendance marks suppressed by the debounce window",
		}),
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herdwatch_alerts_created_total",
			Help: "Total number of alerts created by severity",
		}, []string{"severity"}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "herdwatch_pipeline_duration_seconds",
			Help:    "Time spent processing one frame through the full pipeline",
			Buckets: prometheus.DefBuckets,
		}),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "herdwatch_mqtt_connected",
			Help: "Whether the MQTT client is currently connected (1) or not (0)",
		}),
		MQTTPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "herdwatch_mqtt_publish_errors_total",
			Help: "Total number of failed MQTT alert publishes",
		}),
	}

	registry.MustRegister(
		m.FramesProcessed,
		m.CaptureFailures,
		m.Detections,
		m.Identifications,
		m.HealthAssessments,
		m.AttendanceMarked,
		m.AttendanceDebounced,
		m.AlertsCreated,
		m.PipelineDuration,
		m.MQTTConnected,
		m.MQTTPublishErrors,
	)
	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, used in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
