package pipeline

import "github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"

// Reason explains why a run stopped.
type Reason string

const (
	// ReasonNoData means the first page stayed empty through every rescue attempt.
	ReasonNoData Reason = "no_data"
	// ReasonEndOfPages means pagination reported no further page.
	ReasonEndOfPages Reason = "end_of_pages"
	// ReasonMaxPages means the requested page count was reached.
	ReasonMaxPages Reason = "max_pages"
	// ReasonCircuitOpen means the source blocked the run.
	ReasonCircuitOpen Reason = "circuit_open"
	// ReasonChallengeExhausted means a challenge could not be passed.
	ReasonChallengeExhausted Reason = "challenge_exhausted"
	// ReasonCancelled means the run timed out or was cancelled.
	ReasonCancelled Reason = "cancelled"
	// ReasonSourceError means the source failed in an unclassified way.
	ReasonSourceError Reason = "source_error"
)

// Result is the terminal outcome of a run. Rows collected before a failure are kept.
type Result struct {
	Rows         []domain.OutputRow `json:"rows"`
	PagesVisited int                `json:"pages_visited"`
	Reason       Reason             `json:"reason"`
	// Err is set only for failed runs; an empty run is not a failure.
	Err error `json:"-"`
}

// Failed reports whether the run ended with an error.
func (r Result) Failed() bool {
	return r.Err != nil
}
