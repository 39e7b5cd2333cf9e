package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded per synchronizer operation.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeDebounced = "debounced"
)

// SyncMetrics records latency and outcome of wishlist synchronizer operations.
type SyncMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewSyncMetrics registers the synchronizer metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wishlist_sync_duration_seconds",
		Help:    "Duration of wishlist sync operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wishlist_sync_total",
		Help: "Wishlist sync operations by outcome.",
	}, []string{"op", "outcome"})
	reg.MustRegister(duration, outcomes)
	return &SyncMetrics{duration: duration, outcomes: outcomes}
}

// Observe records one finished operation.
func (s *SyncMetrics) Observe(op, outcome string, took time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	op = normalizeLabel(op)
	s.duration.WithLabelValues(op).Observe(took.Seconds())
	s.outcomes.WithLabelValues(op, normalizeLabel(outcome)).Inc()
}

// EnrichmentMetrics records background enrichment job executions.
type EnrichmentMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewEnrichmentMetrics registers the enrichment job metrics on the provided registerer.
func NewEnrichmentMetrics(reg prometheus.Registerer) *EnrichmentMetrics {
	if reg == nil {
		return &EnrichmentMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "enrichment_step_duration_seconds",
		Help:    "Duration of enrichment steps in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_step_success",
		Help: "Successful enrichment steps.",
	}, []string{"step"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_step_failure",
		Help: "Failed enrichment steps.",
	}, []string{"step"})
	reg.MustRegister(duration, success, failure)
	return &EnrichmentMetrics{duration: duration, success: success, failure: failure}
}

// ObserveDuration records the duration for the named step.
func (e *EnrichmentMetrics) ObserveDuration(step string, duration time.Duration) {
	if e == nil || e.duration == nil {
		return
	}
	e.duration.WithLabelValues(normalizeLabel(step)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named step.
func (e *EnrichmentMetrics) IncSuccess(step string) {
	if e == nil || e.success == nil {
		return
	}
	e.success.WithLabelValues(normalizeLabel(step)).Inc()
}

// IncFailure increments the failure counter for the named step.
func (e *EnrichmentMetrics) IncFailure(step string) {
	if e == nil || e.failure == nil {
		return
	}
	e.failure.WithLabelValues(normalizeLabel(step)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
