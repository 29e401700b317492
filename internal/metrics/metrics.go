// Package metrics records install pipeline counters in a private Prometheus registry.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowupdater"

// Download results
const (
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Metrics holds the collectors for one process
type Metrics struct {
	registry             *prometheus.Registry
	downloads            *prometheus.CounterVec
	downloadedBytes      prometheus.Counter
	verificationFailures prometheus.Counter
	staleDeleted         prometheus.Counter
	installDuration      *prometheus.HistogramVec
}

// New creates a Metrics with its own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Files processed by the downloader, by kind and result.",
		}, []string{"kind", "result"}),
		downloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written by successful downloads.",
		}),
		verificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_failures_total",
			Help:      "Downloads rejected because of a hash or size mismatch.",
		}),
		staleDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_mods_deleted_total",
			Help:      "Files removed from the mods directory by the reconciler.",
		}),
		installDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forge_install_duration_seconds",
			Help:      "Duration of Forge install runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"generation", "result"}),
	}

	m.registry.MustRegister(
		m.downloads,
		m.downloadedBytes,
		m.verificationFailures,
		m.staleDeleted,
		m.installDuration,
	)

	return m
}

// Registry exposes the underlying registry, e.g. for tests or an HTTP handler
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveDownload counts one processed file
func (m *Metrics) ObserveDownload(kind, result string) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(kind, result).Inc()
}

// AddBytes adds to the downloaded byte counter
func (m *Metrics) AddBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.downloadedBytes.Add(float64(n))
}

// VerificationFailed counts one rejected download
func (m *Metrics) VerificationFailed() {
	if m == nil {
		return
	}
	m.verificationFailures.Inc()
}

// StaleDeleted counts files removed by the reconciler
func (m *Metrics) StaleDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.staleDeleted.Add(float64(n))
}

// ObserveInstall records the duration of a Forge install run
func (m *Metrics) ObserveInstall(generation, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.installDuration.WithLabelValues(generation, result).Observe(d.Seconds())
}

// WriteTextfile writes the current values in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
