// Package metrics exposes Prometheus metrics for tagging, scanning and
// matching sessions.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "video_align"

// Metrics holds every collector. A nil *Metrics is valid and records
// nothing, so callers never need to check whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	FramesTotal        *prometheus.CounterVec
	EncodedTotal       *prometheus.CounterVec
	VerdictsTotal      *prometheus.CounterVec
	CodecErrorsTotal   *prometheus.CounterVec
	PipelineErrors     *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	RegistryCodes      *prometheus.GaugeVec
	SessionFPS         *prometheus.GaugeVec
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "frames_total",
			Help:      "Frames scanned, by session role and outcome (found/dropped)",
		}, []string{"role", "outcome"}),

		EncodedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "encode",
			Name:      "frames_total",
			Help:      "Frames stamped with an identifier, by prefix",
		}, []string{"prefix"}),

		VerdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "verdicts_total",
			Help:      "Matcher verdicts, by session role and verdict",
		}, []string{"role", "verdict"}),

		CodecErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "codec",
			Name:      "errors_total",
			Help:      "Frame codec failures, by operation",
		}, []string{"operation"}),

		PipelineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "errors_total",
			Help:      "GStreamer pipeline errors, by pipeline and category",
		}, []string{"pipeline", "category"}),

		ProcessingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "codec",
			Name:      "duration_seconds",
			Help:      "Per-frame codec duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"operation"}),

		RegistryCodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "codes",
			Help:      "Codes held by the matcher (reference seen, capture remaining)",
		}, []string{"set"}),

		SessionFPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "fps",
			Help:      "Mean frame rate of the last completed session, from buffer timestamps",
		}, []string{"role"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"frames_total":        m.FramesTotal,
		"encoded_total":       m.EncodedTotal,
		"verdicts_total":      m.VerdictsTotal,
		"codec_errors_total":  m.CodecErrorsTotal,
		"pipeline_errors":     m.PipelineErrors,
		"processing_duration": m.ProcessingDuration,
		"registry_codes":      m.RegistryCodes,
		"session_fps":         m.SessionFPS,
		"go":                  collectors.NewGoCollector(),
		"process":             collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register %s: %w", name, err)
		}
	}

	return m, nil
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveScan records one scanned frame.
func (m *Metrics) ObserveScan(role, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(role, outcome).Inc()
	m.ProcessingDuration.WithLabelValues("scan").Observe(took.Seconds())
}

// ObserveEncode records one stamped frame.
func (m *Metrics) ObserveEncode(prefix string, took time.Duration) {
	if m == nil {
		return
	}
	m.EncodedTotal.WithLabelValues(prefix).Inc()
	m.ProcessingDuration.WithLabelValues("encode").Observe(took.Seconds())
}

// ObserveVerdict records one matcher decision.
func (m *Metrics) ObserveVerdict(role, verdict string) {
	if m == nil {
		return
	}
	m.VerdictsTotal.WithLabelValues(role, verdict).Inc()
}

// CodecError records a failed encode or scan.
func (m *Metrics) CodecError(operation string) {
	if m == nil {
		return
	}
	m.CodecErrorsTotal.WithLabelValues(operation).Inc()
}

// PipelineError records a classified pipeline failure.
func (m *Metrics) PipelineError(pipeline, category string) {
	if m == nil {
		return
	}
	m.PipelineErrors.WithLabelValues(pipeline, category).Inc()
}

// SetCodes records the size of a matcher set.
func (m *Metrics) SetCodes(set string, n int) {
	if m == nil {
		return
	}
	m.RegistryCodes.WithLabelValues(set).Set(float64(n))
}

// SetSessionFPS records the measured frame rate of a session.
func (m *Metrics) SetSessionFPS(role string, fps float64) {
	if m == nil {
		return
	}
	m.SessionFPS.WithLabelValues(role).Set(fps)
}
