// Package metrics exposes Prometheus counters for the drawing pipeline.
package metrics

import (
	"context"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
)

const namespace = "handraw"

// Metrics holds the collectors of one pipeline on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	FramesProcessed prometheus.Counter
	FramesDropped   prometheus.Counter
	HandsDetected   prometheus.Counter
	DetectErrors    prometheus.Counter
	Segments        prometheus.Counter
	Strokes         prometheus.Counter
	Clears          prometheus.Counter
	Exports         *prometheus.CounterVec
	Drawing         prometheus.Gauge
	Clients         prometheus.Gauge
	FrameSeconds    prometheus.Histogram

	memUsage prometheus.Gauge
	cpuUsage prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Frames run through the gesture state machine.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames replaced by a newer frame before processing.",
		}),
		HandsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hands_detected_total",
			Help:      "Frames in which at least one hand was found.",
		}),
		DetectErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detect_errors_total",
			Help:      "Landmark detection failures.",
		}),
		Segments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_drawn_total",
			Help:      "Line segments rendered onto the surface.",
		}),
		Strokes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strokes_started_total",
			Help:      "Strokes started by a pinch.",
		}),
		Clears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "canvas_clears_total",
			Help:      "Explicit surface clears.",
		}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Exported files by format.",
		}, []string{"format"}),
		Drawing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drawing",
			Help:      "1 while a stroke is in progress.",
		}),
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "landmark_clients",
			Help:      "Connected landmark WebSocket clients.",
		}),
		FrameSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Time spent detecting and rendering one frame.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_usage_megabytes",
			Help:      "Resident memory of the process in megabytes.",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cpu_usage_percent",
			Help:      "CPU usage of the process in percent.",
		}),
	}

	m.registry.MustRegister(
		m.FramesProcessed, m.FramesDropped, m.HandsDetected, m.DetectErrors,
		m.Segments, m.Strokes, m.Clears, m.Exports,
		m.Drawing, m.Clients, m.FrameSeconds,
		m.memUsage, m.cpuUsage,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetDrawing records whether a stroke is in progress.
func (m *Metrics) SetDrawing(drawing bool) {
	if drawing {
		m.Drawing.Set(1)
		return
	}
	m.Drawing.Set(0)
}

// MonitorProcess samples memory and CPU usage of this process every
// interval until ctx is done.
func (m *Metrics) MonitorProcess(ctx context.Context, interval time.Duration) error {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.sample(ctx, proc)
		}
	}
}

func (m *Metrics) sample(ctx context.Context, proc *process.Process) {
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
		m.memUsage.Set(float64(mem.RSS / 1024 / 1024))
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		m.cpuUsage.Set(math.Round(cpu*100) / 100)
	}
}
