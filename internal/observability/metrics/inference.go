// Package metrics provides Prometheus collectors for the service components.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// InferenceMetrics contains Prometheus metrics for the inference sidecar client.
type InferenceMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheHitsTotal  prometheus.Counter
	cacheMissTotal  prometheus.Counter
}

// NewInferenceMetrics creates and registers the inference client metrics.
func NewInferenceMetrics(registerer prometheus.Registerer) (*InferenceMetrics, error) {
	m := &InferenceMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inference_requests_total",
				Help: "Total number of requests to the inference sidecar",
			},
			[]string{"operation", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inference_request_duration_seconds",
				Help:    "Duration of inference sidecar requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		cacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inference_cache_hits_total",
				Help: "Total number of inference cache hits",
			},
		),
		cacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inference_cache_misses_total",
				Help: "Total number of inference cache misses",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.requestsTotal, m.requestDuration, m.cacheHitsTotal, m.cacheMissTotal,
	}
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register inference metrics: %w", err)
		}
	}
	return m, nil
}

// RecordRequest increments the request counter for an operation outcome.
func (m *InferenceMetrics) RecordRequest(operation, status string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration observes the duration of a sidecar request.
func (m *InferenceMetrics) RecordDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordCacheHit increments the cache hit counter.
func (m *InferenceMetrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHitsTotal.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (m *InferenceMetrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMissTotal.Inc()
}
