package metrics_test

import (
	"testing"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	m.PageVisited()
	m.PageVisited()
	m.RecordsFound(3)
	m.RowsEmitted(4)
	m.RescueAttempt()
	m.ChallengeAttempt("wrong")
	m.CircuitOpened()
	m.FetchResult(metrics.CallList, metrics.OutcomeBlocked)
	m.FetchResult(metrics.CallDetail, metrics.OutcomeOK)
	m.FetchResult(metrics.CallDetail, metrics.OutcomeOK)

	assert.InDelta(t, 2, testutil.ToFloat64(m.PagesVisitedTotal), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.RecordsFoundTotal), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.RowsEmittedTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RescueAttemptsTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ChallengeAttemptsTotal.WithLabelValues("wrong")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CircuitOpenTotal), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(
		m.FetchResultsTotal.WithLabelValues(metrics.CallDetail, metrics.OutcomeOK)), 0)
}

func TestNop_SatisfiesRecorder(t *testing.T) {
	t.Parallel()

	var r metrics.Recorder = metrics.NewNop()
	r.PageVisited()
	r.FetchResult(metrics.CallList, metrics.OutcomeOK)
}
