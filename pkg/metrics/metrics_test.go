package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLabels_toPrometheusLabels(t *testing.T) {
	tests := []struct {
		name     string
		labels   Labels
		expected prometheus.Labels
	}{
		{
			name:     "empty labels",
			labels:   Labels{},
			expected: prometheus.Labels{},
		},
		{
			name: "all labels set",
			labels: Labels{
				Environment: "production",
				Region:      "eu-west-1",
			},
			expected: prometheus.Labels{
				"environment": "production",
				"region":      "eu-west-1",
			},
		},
		{
			name: "partial labels",
			labels: Labels{
				Environment: "staging",
			},
			expected: prometheus.Labels{
				"environment": "staging",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.labels.toPrometheusLabels()
			require.Equal(t, tt.expected, result)
		})
	}
}

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	// Vectors only appear once observed; the plain gauge and histogram always do.
	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, metricFamilies)
}

func TestNewWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := NewWithLabels(reg, Labels{Environment: "test", Region: "lab"})
	require.NoError(t, err)

	m.RecordSubmission(nil, 16)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() != "jobsubmit_submissions_total" {
			continue
		}
		found = true
		require.NotEmpty(t, mf.GetMetric())

		labelMap := make(map[string]string)
		for _, label := range mf.GetMetric()[0].GetLabel() {
			labelMap[label.GetName()] = label.GetValue()
		}
		require.Equal(t, "test", labelMap["environment"])
		require.Equal(t, "lab", labelMap["region"])
		require.Equal(t, StatusSuccess, labelMap["status"])
	}
	require.True(t, found, "submissions metric not gathered")
}

func TestNew_RegistrationError(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := New(reg)
	require.NoError(t, err)

	// Second registration should fail (duplicate metrics)
	m, err := New(reg)
	require.Nil(t, m, "expected nil metrics on duplicate registration")

	var alreadyRegistered prometheus.AlreadyRegisteredError
	require.ErrorAs(t, err, &alreadyRegistered)
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.IncError(ErrTypeConnection)
	})
	require.NotPanics(t, func() {
		m.RecordStage(StageConnect, nil, 0.1)
	})
	require.NotPanics(t, func() {
		m.RecordSubmission(errors.New("boom"), 0)
	})
}

func TestMetrics_IncError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.IncError(ErrTypePreconditionFailed)
	m.IncError(ErrTypePreconditionFailed)
	m.IncError(ErrTypePublish)

	require.Equal(t, float64(2), testutil.ToFloat64(m.errors.WithLabelValues(ErrTypePreconditionFailed)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues(ErrTypePublish)))
}

func TestMetrics_RecordStage(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordStage(StageConnect, nil, 0.02)
	m.RecordStage(StageEnsureQueue, nil, 0.005)
	m.RecordStage(StagePublish, errors.New("nack"), 0.3)

	require.Equal(t, 3, testutil.CollectAndCount(m.stageDuration))
	require.Equal(t, float64(0), testutil.ToFloat64(m.stageErrors.WithLabelValues(StageConnect)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.stageErrors.WithLabelValues(StagePublish)))
}

func TestMetrics_RecordSubmission(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordSubmission(nil, 16)
	m.RecordSubmission(errors.New("connection refused"), 0)
	m.RecordSubmission(errors.New("nack"), 0)

	require.Equal(t, float64(1), testutil.ToFloat64(m.submissions.WithLabelValues(StatusSuccess)))
	require.Equal(t, float64(2), testutil.ToFloat64(m.submissions.WithLabelValues(StatusError)))
	require.Greater(t, testutil.ToFloat64(m.lastSuccessTimestamp), float64(0))
}
