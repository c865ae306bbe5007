// Package metrics records build and deploy runs as Prometheus metrics.
//
// A CLI run is too short-lived to be scraped, so metrics are written to a
// textfile that node_exporter's textfile collector can pick up. All methods
// are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace is the metrics namespace used by New.
const DefaultNamespace = "shipsite"

// Upload results.
const (
	ResultUploaded = "uploaded"
	ResultSkipped  = "skipped"
	ResultFailed   = "failed"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	stageFiles    *prometheus.CounterVec
	stageChanged  *prometheus.CounterVec
	stageBytesIn  *prometheus.CounterVec
	stageBytesOut *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	buildsTotal   *prometheus.CounterVec
	lastBuild     prometheus.Gauge

	uploadsTotal   *prometheus.CounterVec
	uploadBytes    prometheus.Counter
	deployDuration prometheus.Histogram
}

// New creates a Metrics backed by its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		stageFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "stage_files_total",
			Help:      "Files produced by each pipeline stage",
		}, []string{"stage"}),
		stageChanged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "stage_changed_files_total",
			Help:      "Files rewritten or added by each pipeline stage",
		}, []string{"stage"}),
		stageBytesIn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "stage_input_bytes_total",
			Help:      "Tree size entering each pipeline stage",
		}, []string{"stage"}),
		stageBytesOut: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "stage_output_bytes_total",
			Help:      "Tree size leaving each pipeline stage",
		}, []string{"stage"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		buildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "runs_total",
			Help:      "Completed builds by status",
		}, []string{"status"}),
		lastBuild: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful build",
		}),
		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deploy",
			Name:      "objects_total",
			Help:      "Objects handled by deploy by result",
		}, []string{"result"}),
		uploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deploy",
			Name:      "uploaded_bytes_total",
			Help:      "Bytes uploaded by deploy",
		}),
		deployDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "deploy",
			Name:      "duration_seconds",
			Help:      "Deploy duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveStage records one pipeline stage run.
func (m *Metrics) ObserveStage(stage string, files, changed int, bytesIn, bytesOut int64, d time.Duration) {
	if m == nil {
		return
	}
	m.stageFiles.WithLabelValues(stage).Add(float64(files))
	m.stageChanged.WithLabelValues(stage).Add(float64(changed))
	m.stageBytesIn.WithLabelValues(stage).Add(float64(bytesIn))
	m.stageBytesOut.WithLabelValues(stage).Add(float64(bytesOut))
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveBuild records a finished build.
func (m *Metrics) ObserveBuild(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.buildsTotal.WithLabelValues("error").Inc()
		return
	}
	m.buildsTotal.WithLabelValues("ok").Inc()
	m.lastBuild.SetToCurrentTime()
}

// ObserveUpload records one object handled by deploy.
func (m *Metrics) ObserveUpload(result string, bytes int64) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(result).Inc()
	if result == ResultUploaded {
		m.uploadBytes.Add(float64(bytes))
	}
}

// ObserveDeploy records the duration of a deploy run.
func (m *Metrics) ObserveDeploy(d time.Duration) {
	if m == nil {
		return
	}
	m.deployDuration.Observe(d.Seconds())
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
