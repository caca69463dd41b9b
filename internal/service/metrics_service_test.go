package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceRecordDecision(t *testing.T) {
	m := NewMetricsService()

	m.RecordDecision("APPROVED")
	m.RecordDecision("APPROVED")
	m.RecordDecision("REJECTED")

	require.Equal(t, float64(2), testutil.ToFloat64(m.decisionTotal.WithLabelValues("APPROVED")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.decisionTotal.WithLabelValues("REJECTED")))
}

func TestMetricsServiceCacheOperations(t *testing.T) {
	m := NewMetricsService()

	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.ObserveCacheWrite(2 * time.Millisecond)

	require.Equal(t, float64(2), testutil.ToFloat64(m.cacheHits))
	require.Equal(t, float64(1), testutil.ToFloat64(m.cacheMisses))
	require.InDelta(t, 2.0/3.0, testutil.ToFloat64(m.cacheHitRatio), 1e-9)
}

func TestMetricsServiceNilReceiverIsSafe(t *testing.T) {
	var m *MetricsService

	require.NotPanics(t, func() {
		m.RecordDecision("APPROVED")
		m.RecordCacheOperation(true, time.Millisecond)
		m.ObserveCacheWrite(time.Millisecond)
	})
}
