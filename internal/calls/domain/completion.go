// Package domain holds the pure business rules of the call lifecycle:
// completion classification, cost extraction, and payload handling.
// Nothing here touches the database or the network.
package domain

// CompletionState is the coarse post-hoc classification of a call outcome.
type CompletionState string

const (
	StateAbandoned CompletionState = "abandoned"
	StatePartial   CompletionState = "partial"
	StateCompleted CompletionState = "completed"
)

const (
	// instantHangupSeconds is the threshold below which a call is treated as
	// an instant hangup regardless of artifacts.
	instantHangupSeconds = 8
	// partialSeconds is the minimum duration for a call without artifacts to
	// count as partially completed.
	partialSeconds = 15
	// longDurationSeconds marks unusually long calls for later analysis.
	// Observe-only: never changes the completion state.
	longDurationSeconds = 480
)

// ClassifyCompletion derives a provisional completion state from the call
// duration and whether the call produced a business artifact (ticket or
// appointment). The state is recomputed from scratch on every invocation;
// there is no persisted transition history.
func ClassifyCompletion(durationSeconds int, hasArtifact bool) CompletionState {
	state := StateAbandoned
	if durationSeconds > instantHangupSeconds {
		if hasArtifact {
			state = StateCompleted
		} else if durationSeconds >= partialSeconds {
			state = StatePartial
		}
	}
	return state
}

// EnforceArtifactInvariant corrects a provisional state against the invariant
// that "partial" requires at least one linked artifact. The artifact lookup
// and the classification decision are not transactionally coupled, so the
// provisional state can be stale by the time it is persisted. Returns the
// final state and whether a correction was applied.
func EnforceArtifactInvariant(state CompletionState, hasArtifact bool) (CompletionState, bool) {
	if state == StatePartial && !hasArtifact {
		return StateAbandoned, true
	}
	return state, false
}

// LongDuration reports whether the call duration crosses the observation
// threshold that tags the event metadata with a duration flag.
func LongDuration(durationSeconds int) bool {
	return durationSeconds >= longDurationSeconds
}
