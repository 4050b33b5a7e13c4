// Package metrics provides Prometheus-based metrics recording for the
// proposal workflow engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records workflow events. The engine calls it on every operation;
// a nil-safe NopRecorder keeps tests quiet.
type Recorder interface {
	RecordSessionCreated()
	RecordStageTransition(from, to string)
	RecordEnrichmentCall(service, status string, duration time.Duration)
	RecordDecision(decision string)
}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	sessionsCreated    prometheus.Counter
	stageTransitions   *prometheus.CounterVec
	enrichmentCalls    *prometheus.CounterVec
	enrichmentDuration *prometheus.HistogramVec
	decisions          *prometheus.CounterVec
}

// NewPrometheusRecorder creates a new Prometheus-based metrics recorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		sessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "proposal_sessions_created_total",
				Help: "Total number of proposal sessions created",
			},
		),
		stageTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proposal_stage_transitions_total",
				Help: "Total number of stage transitions by from and to stage",
			},
			[]string{"from", "to"},
		),
		enrichmentCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proposal_enrichment_calls_total",
				Help: "Total number of enrichment service calls by service and status",
			},
			[]string{"service", "status"},
		),
		enrichmentDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proposal_enrichment_duration_seconds",
				Help:    "Duration of enrichment service calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proposal_decisions_total",
				Help: "Total number of admin decisions by outcome",
			},
			[]string{"decision"},
		),
	}
}

func (r *PrometheusRecorder) RecordSessionCreated() {
	r.sessionsCreated.Inc()
}

func (r *PrometheusRecorder) RecordStageTransition(from, to string) {
	r.stageTransitions.WithLabelValues(from, to).Inc()
}

func (r *PrometheusRecorder) RecordEnrichmentCall(service, status string, duration time.Duration) {
	r.enrichmentCalls.WithLabelValues(service, status).Inc()
	r.enrichmentDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordDecision(decision string) {
	r.decisions.WithLabelValues(decision).Inc()
}

// NopRecorder discards all metrics. Used in tests.
type NopRecorder struct{}

func (NopRecorder) RecordSessionCreated()                             {}
func (NopRecorder) RecordStageTransition(_, _ string)                 {}
func (NopRecorder) RecordEnrichmentCall(_, _ string, _ time.Duration) {}
func (NopRecorder) RecordDecision(_ string)                           {}
