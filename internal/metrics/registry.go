// Package metrics exposes Prometheus instrumentation for the scanning
// pipeline: fetch latency, safety-check pass rates, signals emitted, and
// convergence tracking. Grounded on the teacher's MetricsRegistry
// construction/registration shape.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry holds every Prometheus metric the pipeline records.
type Registry struct {
	FetchLatency   *prometheus.HistogramVec
	FetchErrors    *prometheus.CounterVec

	SafetyChecksTotal  *prometheus.CounterVec
	SafetyChecksFailed *prometheus.CounterVec

	SignalsEmitted    *prometheus.CounterVec
	SignalsSuppressed *prometheus.CounterVec

	ConvergenceActive    prometheus.Gauge
	ConvergenceClosed    *prometheus.CounterVec
	ConvergenceCheckTime *prometheus.HistogramVec

	JobDuration *prometheus.HistogramVec
	JobErrors   *prometheus.CounterVec
}

// New builds and registers every metric with the default Prometheus
// registry.
func New() *Registry {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer builds the registry against a caller-supplied
// registerer, so tests can use a private prometheus.NewRegistry() instead
// of colliding on the global default.
func NewWithRegisterer(reg prometheus.Registerer) *Registry {
	r := &Registry{
		FetchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbiq_fetch_latency_ms",
				Help:    "Venue fetch round-trip latency in milliseconds",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
			[]string{"venue_id", "op"},
		),
		FetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiq_fetch_errors_total",
				Help: "Total venue fetch errors by venue and error kind",
			},
			[]string{"venue_id", "kind"},
		),
		SafetyChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiq_safety_checks_total",
				Help: "Total safety battery checks evaluated by check name",
			},
			[]string{"check"},
		),
		SafetyChecksFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiq_safety_checks_failed_total",
				Help: "Total safety battery checks that failed, by check name",
			},
			[]string{"check"},
		),
		SignalsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiq_signals_emitted_total",
				Help: "Total signals emitted by strategy_type",
			},
			[]string{"strategy_type"},
		),
		SignalsSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiq_signals_suppressed_total",
				Help: "Total signals suppressed by reason (cooldown, blacklist, safety_fail)",
			},
			[]string{"reason"},
		),
		ConvergenceActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "arbiq_convergence_active",
				Help: "Number of currently open convergence records",
			},
		),
		ConvergenceClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiq_convergence_closed_total",
				Help: "Total convergence records closed, by close_reason",
			},
			[]string{"close_reason"},
		),
		ConvergenceCheckTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbiq_convergence_check_seconds",
				Help:    "Wall time to re-tick one active convergence record",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbiq_job_duration_seconds",
				Help:    "Duration of each orchestrator job run",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"job", "result"},
		),
		JobErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiq_job_errors_total",
				Help: "Total job loop errors by job name",
			},
			[]string{"job"},
		),
	}

	reg.MustRegister(
		r.FetchLatency, r.FetchErrors,
		r.SafetyChecksTotal, r.SafetyChecksFailed,
		r.SignalsEmitted, r.SignalsSuppressed,
		r.ConvergenceActive, r.ConvergenceClosed, r.ConvergenceCheckTime,
		r.JobDuration, r.JobErrors,
	)

	return r
}

// Handler returns the HTTP handler exposing the process's metrics in
// Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFetch observes one venue fetch's latency and, on error, increments
// the error counter.
func (r *Registry) RecordFetch(venueID, op string, latency time.Duration, errKind string) {
	r.FetchLatency.WithLabelValues(venueID, op).Observe(float64(latency.Milliseconds()))
	if errKind != "" {
		r.FetchErrors.WithLabelValues(venueID, errKind).Inc()
	}
}

// RecordSafetyChecks tallies every check in a safety battery run, marking
// failures separately so check-level pass rates can be derived.
func (r *Registry) RecordSafetyChecks(results map[string]bool) {
	for name, passed := range results {
		r.SafetyChecksTotal.WithLabelValues(name).Inc()
		if !passed {
			r.SafetyChecksFailed.WithLabelValues(name).Inc()
		}
	}
}

// RecordSignalEmitted increments the emitted counter for a strategy_type.
func (r *Registry) RecordSignalEmitted(strategyType string) {
	r.SignalsEmitted.WithLabelValues(strategyType).Inc()
}

// RecordSignalSuppressed increments the suppressed counter for a reason.
func (r *Registry) RecordSignalSuppressed(reason string) {
	r.SignalsSuppressed.WithLabelValues(reason).Inc()
}

// RecordConvergenceClosed increments the closed counter and decrements the
// active gauge for a record closing with closeReason.
func (r *Registry) RecordConvergenceClosed(closeReason string) {
	r.ConvergenceClosed.WithLabelValues(closeReason).Inc()
	r.ConvergenceActive.Dec()
}

// RecordConvergenceOpened increments the active gauge for a newly emitted
// signal's convergence record.
func (r *Registry) RecordConvergenceOpened() {
	r.ConvergenceActive.Inc()
}

// RecordJob observes a job loop iteration's duration and result.
func (r *Registry) RecordJob(job, result string, d time.Duration) {
	r.JobDuration.WithLabelValues(job, result).Observe(d.Seconds())
	if result == "error" {
		r.JobErrors.WithLabelValues(job).Inc()
		log.Warn().Str("job", job).Dur("duration", d).Msg("job iteration failed")
	}
}
