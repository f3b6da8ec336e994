// Package metrics records pipeline activity as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all crawler metrics.
	MetricsNamespace = "intent_crawler"

	// MetricsSubsystem is the subsystem for pipeline metrics.
	MetricsSubsystem = "pipeline"
)

// Fetch call kinds.
const (
	CallList   = "list"
	CallDetail = "detail"
)

// Fetch outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeBlocked = "blocked"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Recorder receives pipeline events. Implementations must be safe for concurrent use.
type Recorder interface {
	PageVisited()
	RecordsFound(n int)
	RowsEmitted(n int)
	RescueAttempt()
	ChallengeAttempt(outcome string)
	CircuitOpened()
	FetchResult(call, outcome string)
}

type nopRecorder struct{}

// NewNop returns a Recorder that discards every event.
func NewNop() Recorder { return nopRecorder{} }

func (nopRecorder) PageVisited()               {}
func (nopRecorder) RecordsFound(int)           {}
func (nopRecorder) RowsEmitted(int)            {}
func (nopRecorder) RescueAttempt()             {}
func (nopRecorder) ChallengeAttempt(string)    {}
func (nopRecorder) CircuitOpened()             {}
func (nopRecorder) FetchResult(string, string) {}

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	PagesVisitedTotal      prometheus.Counter
	RecordsFoundTotal      prometheus.Counter
	RowsEmittedTotal       prometheus.Counter
	RescueAttemptsTotal    prometheus.Counter
	ChallengeAttemptsTotal *prometheus.CounterVec
	CircuitOpenTotal       prometheus.Counter
	FetchResultsTotal      *prometheus.CounterVec
}

// NewMetrics creates and registers all pipeline metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.PagesVisitedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystem,
		Name:      "pages_visited_total",
		Help:      "Total number of listing pages visited",
	})
	m.RecordsFoundTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystem,
		Name:      "records_found_total",
		Help:      "Total number of list records discovered",
	})
	m.RowsEmittedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystem,
		Name:      "rows_emitted_total",
		Help:      "Total number of output rows produced",
	})
	m.RescueAttemptsTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystem,
		Name:      "rescue_attempts_total",
		Help:      "Total number of rescue attempts after an empty page",
	})
	m.ChallengeAttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "challenge_attempts_total",
			Help:      "Total number of challenge solve attempts",
		},
		[]string{"outcome"},
	)
	m.CircuitOpenTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystem,
		Name:      "circuit_open_total",
		Help:      "Total number of runs stopped by an open circuit",
	})
	m.FetchResultsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "fetch_results_total",
			Help:      "Total number of fetcher calls by kind and outcome",
		},
		[]string{"call", "outcome"},
	)

	return m
}

func (m *Metrics) PageVisited() { m.PagesVisitedTotal.Inc() }

func (m *Metrics) RecordsFound(n int) { m.RecordsFoundTotal.Add(float64(n)) }

func (m *Metrics) RowsEmitted(n int) { m.RowsEmittedTotal.Add(float64(n)) }

func (m *Metrics) RescueAttempt() { m.RescueAttemptsTotal.Inc() }

func (m *Metrics) ChallengeAttempt(outcome string) {
	m.ChallengeAttemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CircuitOpened() { m.CircuitOpenTotal.Inc() }

func (m *Metrics) FetchResult(call, outcome string) {
	m.FetchResultsTotal.WithLabelValues(call, outcome).Inc()
}
