package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "jobsubmit"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	// Stage label values, in the order a submission runs them
	StageReadPayload = "read_payload"
	StageConnect     = "connect"
	StageEnsureQueue = "ensure_queue"
	StagePublish     = "publish"
)

// Labels holds constant labels applied to all metrics.
// These distinguish submissions from different CI runners or deployments.
type Labels struct {
	Environment string // Deployment environment (e.g., "production", "staging")
	Region      string // Region or site of the submitting runner
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	return labels
}

type Metrics struct {
	submissions          *prometheus.CounterVec   // by status
	stageDuration        *prometheus.HistogramVec // by stage
	stageErrors          *prometheus.CounterVec   // by stage
	errors               *prometheus.CounterVec   // by type
	payloadBytes         prometheus.Histogram
	lastSuccessTimestamp prometheus.Gauge
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// Returns an error if any metric registration fails.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "submissions_total",
			Help:      "Total job submissions by status",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each submission stage in seconds",
			// Broker round trips: 1ms up to 30s for a slow confirm
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stage_errors_total",
			Help:      "Total failed submission stages",
		}, []string{"stage"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"type"}),
		payloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "payload_bytes",
			Help:      "Size of submitted payloads in bytes",
			// 64B .. 4MiB
			Buckets: prometheus.ExponentialBuckets(64, 4, 9),
		}),
		lastSuccessTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last confirmed submission",
		}),
	}

	err := errors.Join(
		reg.Register(m.submissions),
		reg.Register(m.stageDuration),
		reg.Register(m.stageErrors),
		reg.Register(m.errors),
		reg.Register(m.payloadBytes),
		reg.Register(m.lastSuccessTimestamp),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Error type constants, one per failure class of a submission.
const (
	ErrTypeConnection         = "connection"
	ErrTypeChannel            = "channel"
	ErrTypePreconditionFailed = "precondition_failed"
	ErrTypePublish            = "publish"
	ErrTypePayloadRead        = "payload_read"
	ErrTypeOther              = "other"
)

// IncError increments the error counter for the given error type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

// RecordStage records the duration and outcome of one submission stage.
func (m *Metrics) RecordStage(stage string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(durationSeconds)
	if err != nil {
		m.stageErrors.WithLabelValues(stage).Inc()
	}
}

// RecordSubmission records the final outcome of a submission. payloadBytes is
// observed only for confirmed submissions.
func (m *Metrics) RecordSubmission(err error, payloadBytes int) {
	if m == nil {
		return
	}
	if err != nil {
		m.submissions.WithLabelValues(StatusError).Inc()
		return
	}
	m.submissions.WithLabelValues(StatusSuccess).Inc()
	m.payloadBytes.Observe(float64(payloadBytes))
	m.lastSuccessTimestamp.SetToCurrentTime()
}
