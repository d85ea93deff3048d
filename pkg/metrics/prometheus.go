package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	observations *prometheus.CounterVec
	conflicts    *prometheus.CounterVec
	cacheReads   *prometheus.CounterVec
	alertsFired  *prometheus.CounterVec
	dispatches   *prometheus.CounterVec
	lastModal    *prometheus.GaugeVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		observations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "croppulse_observations_total",
				Help: "Price observations processed, by source and outcome",
			},
			[]string{"source", "result"},
		),
		conflicts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "croppulse_conflicts_resolved_total",
				Help: "Multi-source conflicts resolved during normalization",
			},
			[]string{"commodity"},
		),
		cacheReads: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "croppulse_cache_reads_total",
				Help: "Cache reads by category and outcome",
			},
			[]string{"category", "result"},
		),
		alertsFired: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "croppulse_alerts_fired_total",
				Help: "Notification events emitted, by rule kind",
			},
			[]string{"kind"},
		),
		dispatches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "croppulse_dispatches_total",
				Help: "Notification handoffs, by backend and outcome",
			},
			[]string{"backend", "result"},
		),
		lastModal: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "croppulse_last_modal_price",
				Help: "Last accepted modal price for a series",
			},
			[]string{"commodity", "market"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "croppulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "croppulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordObservation records one processed observation.
func (r *Recorder) RecordObservation(source, result string) {
	r.observations.WithLabelValues(source, result).Inc()
}

// RecordConflict records a resolved multi-source conflict.
func (r *Recorder) RecordConflict(commodity string) {
	r.conflicts.WithLabelValues(commodity).Inc()
}

// RecordCache records a cache read outcome.
func (r *Recorder) RecordCache(category, result string) {
	r.cacheReads.WithLabelValues(category, result).Inc()
}

// RecordAlertFired records an emitted notification event.
func (r *Recorder) RecordAlertFired(kind string) {
	r.alertsFired.WithLabelValues(kind).Inc()
}

// RecordDispatch records a notification handoff attempt.
func (r *Recorder) RecordDispatch(backend, result string) {
	r.dispatches.WithLabelValues(backend, result).Inc()
}

// RecordLastModalPrice records the last accepted modal price for a series.
func (r *Recorder) RecordLastModalPrice(commodity, market string, price float64) {
	r.lastModal.WithLabelValues(commodity, market).Set(price)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
