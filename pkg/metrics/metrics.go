// Package metrics provides Prometheus observability for adforge.
//
// Metrics are registered automatically via promauto. Components record
// through the package-level collectors; a per-component Collector wrapper
// adds the component label and timing helpers.
//
//	timer := metrics.NewTimer()
//	uploadChunk(data)
//	metrics.StageDuration.WithLabelValues("meta", "upload").Observe(timer.Stop().Seconds())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts upload jobs by network and terminal outcome
	// (succeeded, failed, aborted).
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adforge_jobs_total",
			Help: "Total upload jobs by network and outcome",
		},
		[]string{"network", "outcome"},
	)

	// JobsActive tracks jobs currently in flight per network.
	JobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adforge_jobs_active",
			Help: "Upload jobs currently executing",
		},
		[]string{"network"},
	)

	// AssetsImported counts assets fetched from storage by source scheme
	// and status (success/failure).
	AssetsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adforge_assets_imported_total",
			Help: "Assets imported from storage by source and status",
		},
		[]string{"source", "status"},
	)

	// AssetsUploaded counts assets uploaded to ad networks by network
	// and status.
	AssetsUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adforge_assets_uploaded_total",
			Help: "Assets uploaded to ad networks by network and status",
		},
		[]string{"network", "status"},
	)

	// UploadBytes counts bytes transferred to ad networks.
	UploadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adforge_upload_bytes_total",
			Help: "Bytes uploaded to ad networks",
		},
		[]string{"network"},
	)

	// Retries counts retry attempts by network and operation.
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adforge_retries_total",
			Help: "Retry attempts by network and operation",
		},
		[]string{"network", "operation"},
	)

	// RateLimitHits counts requests delayed or denied by rate limiting.
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adforge_rate_limit_hits_total",
			Help: "Requests delayed by per-account rate limiting",
		},
		[]string{"network", "account"},
	)

	// StageDuration observes pipeline stage latency per network.
	// Stages: import, validate, resolve, upload, create.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adforge_stage_duration_seconds",
			Help:    "Pipeline stage latency",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"network", "stage"},
	)

	// DiagnosticsReported counts diagnostic records by error category.
	DiagnosticsReported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adforge_diagnostics_total",
			Help: "Diagnostic records by error category",
		},
		[]string{"category"},
	)
)

// Collector provides component-scoped metric recording. Each component
// creates its own collector; the component name becomes the network label
// where that is the natural dimension.
type Collector struct {
	name      string
	startTime time.Time
}

// NewCollector creates a metrics collector for a component.
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
	}
}

// Name returns the component name used for labeling.
func (c *Collector) Name() string {
	return c.name
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// ObserveStage records a stage latency for this component.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(c.name, stage).Observe(d.Seconds())
}

// IncRetry records a retry attempt for an operation.
func (c *Collector) IncRetry(operation string) {
	Retries.WithLabelValues(c.name, operation).Inc()
}

// AddUploadBytes records bytes transferred.
func (c *Collector) AddUploadBytes(n int64) {
	UploadBytes.WithLabelValues(c.name).Add(float64(n))
}

// Timer measures elapsed time for a single operation
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
