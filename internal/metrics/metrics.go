// Package metrics holds the Prometheus instrumentation for the daemon:
// TLE fetch outcomes, pass detection, capture lifecycle, and upload
// failures. A private registry keeps the scrape surface limited to what
// the daemon itself registers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every counter and gauge the daemon exposes.
type Metrics struct {
	registry *prometheus.Registry

	tleFetches       prometheus.Counter
	tleCacheFallback prometheus.Counter
	passesDetected   prometheus.Counter
	capturesStarted  prometheus.Counter
	capturesDone     prometheus.Counter
	capturesFailed   prometheus.Counter
	passesSkipped    prometheus.Counter
	uploadsFailed    prometheus.Counter
	recordingActive  prometheus.Gauge
}

// New creates and registers the daemon's metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		tleFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_tle_fetch_total",
			Help: "Total element set refreshes attempted",
		}),
		tleCacheFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_tle_cache_fallback_total",
			Help: "Refreshes served from the disk cache after a network failure",
		}),
		passesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_passes_detected_total",
			Help: "Passes emitted by the segmenter across all refresh cycles",
		}),
		capturesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_captures_started_total",
			Help: "Recording sessions started",
		}),
		capturesDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_captures_completed_total",
			Help: "Recording sessions that produced a downsampled artifact",
		}),
		capturesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_captures_failed_total",
			Help: "Recording sessions that ended in a pipeline error",
		}),
		passesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_passes_skipped_total",
			Help: "Due passes refused because a recording was already active",
		}),
		uploadsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_uploads_failed_total",
			Help: "Artifact uploads that exhausted their retries",
		}),
		recordingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skywatch_recording_active",
			Help: "1 while a capture pipeline is running",
		}),
	}

	registry.MustRegister(
		m.tleFetches,
		m.tleCacheFallback,
		m.passesDetected,
		m.capturesStarted,
		m.capturesDone,
		m.capturesFailed,
		m.passesSkipped,
		m.uploadsFailed,
		m.recordingActive,
	)

	return m
}

func (m *Metrics) IncTLEFetches()       { m.tleFetches.Inc() }
func (m *Metrics) IncTLECacheFallback() { m.tleCacheFallback.Inc() }

// AddPassesDetected records how many passes one refresh cycle produced.
func (m *Metrics) AddPassesDetected(n int) { m.passesDetected.Add(float64(n)) }

func (m *Metrics) IncCapturesStarted()   { m.capturesStarted.Inc() }
func (m *Metrics) IncCapturesCompleted() { m.capturesDone.Inc() }
func (m *Metrics) IncCapturesFailed()    { m.capturesFailed.Inc() }
func (m *Metrics) IncPassesSkipped()     { m.passesSkipped.Inc() }
func (m *Metrics) IncUploadsFailed()     { m.uploadsFailed.Inc() }

func (m *Metrics) SetRecordingActive(active bool) {
	if active {
		m.recordingActive.Set(1)
	} else {
		m.recordingActive.Set(0)
	}
}

// Handler returns the scrape endpoint for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
