package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/joacominatel/connections/internal/domain"
)

// Metrics holds all prometheus metrics for the connections service.
// uses a custom registry to avoid polluting the global namespace.
type Metrics struct {
	Registry *prometheus.Registry

	// http_request_duration_seconds - histogram for api latency
	HTTPRequestDuration *prometheus.HistogramVec

	// connections_evaluations_total - engine runs by kind and badge
	EvaluationsTotal *prometheus.CounterVec

	// connections_evaluations_rejected_total - malformed inputs by kind
	EvaluationsRejectedTotal *prometheus.CounterVec

	// connections_inputs_normalized_total - evaluations that defaulted or clamped a field
	InputsNormalizedTotal *prometheus.CounterVec

	// connections_confidence_unavailable_total
	ConfidenceUnavailableTotal prometheus.Counter

	// connections_snapshots_ingested_total - by ingestion path
	SnapshotsIngestedTotal *prometheus.CounterVec

	// connections_buffer_size - snapshots waiting in the ingestion buffer
	BufferSize prometheus.Gauge

	// connections_scoring_duration_seconds - full rescoring runs
	ScoringDuration prometheus.Histogram

	// connections_accounts_scored_total - by resulting badge
	AccountsScoredTotal *prometheus.CounterVec

	// connections_breakouts_total - transitions into breakout
	BreakoutsTotal prometheus.Counter

	// connections_webhook_deliveries_total - by outcome
	WebhookDeliveriesTotal *prometheus.CounterVec
}

// New creates and registers all prometheus metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		EvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connections_evaluations_total",
				Help: "Total number of engine evaluations",
			},
			[]string{"kind", "badge"},
		),

		EvaluationsRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connections_evaluations_rejected_total",
				Help: "Total number of evaluations rejected for malformed input",
			},
			[]string{"kind"},
		),

		InputsNormalizedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connections_inputs_normalized_total",
				Help: "Total number of evaluations that defaulted or clamped an input field",
			},
			[]string{"kind", "action"},
		),

		ConfidenceUnavailableTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "connections_confidence_unavailable_total",
			Help: "Total number of early-signal evaluations without a confidence value",
		}),

		SnapshotsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connections_snapshots_ingested_total",
				Help: "Total number of influence snapshots ingested",
			},
			[]string{"path"},
		),

		BufferSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "connections_buffer_size",
			Help: "Current number of snapshots waiting in the ingestion buffer",
		}),

		ScoringDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "connections_scoring_duration_seconds",
			Help:    "Duration of rescoring runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~100s
		}),

		AccountsScoredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connections_accounts_scored_total",
				Help: "Total number of accounts rescored, by badge",
			},
			[]string{"badge"},
		),

		BreakoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "connections_breakouts_total",
			Help: "Total number of transitions into the breakout badge",
		}),

		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connections_webhook_deliveries_total",
				Help: "Total number of breakout webhook deliveries",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestDuration,
		m.EvaluationsTotal,
		m.EvaluationsRejectedTotal,
		m.InputsNormalizedTotal,
		m.ConfidenceUnavailableTotal,
		m.SnapshotsIngestedTotal,
		m.BufferSize,
		m.ScoringDuration,
		m.AccountsScoredTotal,
		m.BreakoutsTotal,
		m.WebhookDeliveriesTotal,
	)

	return m
}

// RecordHTTPRequest records the duration of an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
}

// RecordEvaluation implements application.EvaluationRecorder.
// badge is empty for trend evaluations.
func (m *Metrics) RecordEvaluation(kind, badge string, report domain.NormalizationReport, confidenceUnavailable bool) {
	if badge == "" {
		badge = "n/a"
	}
	m.EvaluationsTotal.WithLabelValues(kind, badge).Inc()

	if report.Defaulted() {
		m.InputsNormalizedTotal.WithLabelValues(kind, "defaulted").Inc()
	}
	if report.Clamped() {
		m.InputsNormalizedTotal.WithLabelValues(kind, "clamped").Inc()
	}
	if confidenceUnavailable {
		m.ConfidenceUnavailableTotal.Inc()
	}
}

// RecordEvaluationRejected implements application.EvaluationRecorder.
func (m *Metrics) RecordEvaluationRejected(kind string) {
	m.EvaluationsRejectedTotal.WithLabelValues(kind).Inc()
}

// RecordSnapshotIngested counts an accepted snapshot, path is "sync" or "async".
func (m *Metrics) RecordSnapshotIngested(path string) {
	m.SnapshotsIngestedTotal.WithLabelValues(path).Inc()
}

// SetBufferSize sets the current buffer size gauge.
func (m *Metrics) SetBufferSize(size int) {
	m.BufferSize.Set(float64(size))
}

// RecordScoringRun implements application.ScoringRecorder.
func (m *Metrics) RecordScoringRun(durationSeconds float64) {
	m.ScoringDuration.Observe(durationSeconds)
}

// RecordAccountScored implements application.ScoringRecorder.
func (m *Metrics) RecordAccountScored(badge string) {
	m.AccountsScoredTotal.WithLabelValues(badge).Inc()
}

// RecordBreakout implements application.ScoringRecorder.
func (m *Metrics) RecordBreakout() {
	m.BreakoutsTotal.Inc()
}

// RecordWebhookDelivery counts a delivery attempt outcome.
func (m *Metrics) RecordWebhookDelivery(outcome string) {
	m.WebhookDeliveriesTotal.WithLabelValues(outcome).Inc()
}
