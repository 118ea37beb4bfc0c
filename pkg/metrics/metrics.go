// Package metrics provides Prometheus instrumentation for storage backends.
//
// Backends receive an Observer; a nil Observer disables collection, so all
// helpers here are nil-safe.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Observer records per-operation outcomes for one storage backend.
type Observer interface {
	// ObserveOperation records one backend call with its duration and outcome.
	ObserveOperation(op string, d time.Duration, err error)

	// RecordBytes records bytes transferred by an operation.
	RecordBytes(op string, n int64)

	// RecordActiveUpload tracks multipart sessions in flight (+1/-1).
	RecordActiveUpload(delta int)
}

// Prometheus is an Observer backed by prometheus collectors.
type Prometheus struct {
	backend    string
	operations *prometheus.HistogramVec
	errors     *prometheus.CounterVec
	bytes      *prometheus.CounterVec
	uploads    prometheus.Gauge
}

// NewPrometheus registers collectors on reg and returns an Observer labelled
// with the backend name. Pass prometheus.DefaultRegisterer for the global
// registry.
func NewPrometheus(reg prometheus.Registerer, backend string) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		backend: backend,
		operations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "artifactfs",
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Duration of storage backend operations.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"backend", "operation"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "artifactfs",
			Subsystem: "storage",
			Name:      "operation_errors_total",
			Help:      "Failed storage backend operations.",
		}, []string{"backend", "operation"}),
		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "artifactfs",
			Subsystem: "storage",
			Name:      "transferred_bytes_total",
			Help:      "Bytes moved by storage backend operations.",
		}, []string{"backend", "operation"}),
		uploads: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "artifactfs",
			Subsystem:   "storage",
			Name:        "active_multipart_uploads",
			Help:        "Multipart upload sessions currently in flight.",
			ConstLabels: prometheus.Labels{"backend": backend},
		}),
	}
}

func (p *Prometheus) ObserveOperation(op string, d time.Duration, err error) {
	p.operations.WithLabelValues(p.backend, op).Observe(d.Seconds())
	if err != nil {
		p.errors.WithLabelValues(p.backend, op).Inc()
	}
}

func (p *Prometheus) RecordBytes(op string, n int64) {
	p.bytes.WithLabelValues(p.backend, op).Add(float64(n))
}

func (p *Prometheus) RecordActiveUpload(delta int) {
	p.uploads.Add(float64(delta))
}

// Observe is a nil-safe helper for the common defer pattern:
//
//	defer func() { metrics.Observe(obs, "GetObject", start, err) }()
func Observe(obs Observer, op string, start time.Time, err error) {
	if obs == nil {
		return
	}
	obs.ObserveOperation(op, time.Since(start), err)
}

// Bytes is a nil-safe RecordBytes.
func Bytes(obs Observer, op string, n int64) {
	if obs == nil {
		return
	}
	obs.RecordBytes(op, n)
}

// ActiveUpload is a nil-safe RecordActiveUpload.
func ActiveUpload(obs Observer, delta int) {
	if obs == nil {
		return
	}
	obs.RecordActiveUpload(delta)
}
