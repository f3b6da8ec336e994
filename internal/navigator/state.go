package navigator

// State is the navigator's position in a page visit.
type State int

const (
	// StateIdle is before any search.
	StateIdle State = iota
	// StateSearching means criteria are being applied.
	StateSearching
	// StateChallengePresent means a challenge image is showing.
	StateChallengePresent
	// StateChallengeSolved means an answer was accepted.
	StateChallengeSolved
	// StateResultsReady means results rendered without a challenge.
	StateResultsReady
	// StateExtracted means the current page's rows were read.
	StateExtracted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateChallengePresent:
		return "challenge_present"
	case StateChallengeSolved:
		return "challenge_solved"
	case StateResultsReady:
		return "results_ready"
	case StateExtracted:
		return "extracted"
	default:
		return "unknown"
	}
}
