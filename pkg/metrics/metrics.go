// Package metrics exposes Prometheus metrics for the reporting subsystem.
//
// # Basic Usage
//
//	metrics.RowsWritten.WithLabelValues("csv", "0").Inc()
//
//	timer := metrics.NewTimer("history")
//	writeRow(snap)
//	metrics.SinkWriteLatency.WithLabelValues("csv").Observe(timer.Stop().Seconds())
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., history rows written)
// Gauge: Values that can go up or down (e.g., the monitored residual)
// Histogram: Distribution of values (e.g., sink write latency)
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "feaout"

var (
	// IterationsReported counts iterations that went through the loader.
	// Labels: zone
	IterationsReported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "iterations_total",
			Help:      "Total number of solver iterations reported",
		},
		[]string{"zone"},
	)

	// HeadersEmitted counts screen headers printed.
	// Labels: zone
	HeadersEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "headers_total",
			Help:      "Total number of screen headers emitted",
		},
		[]string{"zone"},
	)

	// RowsWritten counts rows handed to each sink.
	// Labels: sink (screen/csv/jsonl/arrow/...), zone
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "rows_total",
			Help:      "Total number of rows written per sink",
		},
		[]string{"sink", "zone"},
	)

	// RowsSuppressed counts screen rows dropped by the write gate.
	// Labels: zone
	RowsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "rows_suppressed_total",
			Help:      "Total number of screen rows suppressed by the write gate",
		},
		[]string{"zone"},
	)

	// VolumePoints counts volume points written.
	// Labels: zone
	VolumePoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "volume_points_total",
			Help:      "Total number of volume points written",
		},
		[]string{"zone"},
	)

	// ReportErrors counts failed reports by error type.
	// Labels: type
	ReportErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "errors_total",
			Help:      "Total number of failed reports",
		},
		[]string{"type"},
	)

	// SinkWriteLatency tracks how long a sink takes per row, in seconds.
	// Labels: sink
	SinkWriteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "sink_write_seconds",
			Help:      "Sink write latency in seconds",
			Buckets: []float64{
				1e-6, // 1μs - in-memory sinks
				1e-5, // 10μs - buffered writes
				1e-4, // 100μs
				1e-3, // 1ms - flushes
				1e-2, // 10ms
				1e-1, // 100ms - large volume snapshots
				1,
			},
		},
		[]string{"sink"},
	)

	// ConvergenceValue is the latest value of the monitored convergence field.
	// Labels: zone, field
	ConvergenceValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "convergence_value",
			Help:      "Latest value of the monitored convergence field",
		},
		[]string{"zone", "field"},
	)

	// PooledRecords reports the volume record pool counters.
	// Labels: state (allocated/in_use)
	PooledRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "pooled_records",
			Help:      "Volume record pool counters",
		},
		[]string{"state"},
	)
)

// Handler returns the HTTP handler serving the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer name
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. The timer can be
// stopped multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
