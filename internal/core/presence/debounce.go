// Package presence contains the pure business logic for target liveness and roster tracking.
// This is part of the Functional Core - no I/O, only pure functions.
package presence

// DefaultFailureThreshold is the number of consecutive probe failures
// required before an up target is declared down.
const DefaultFailureThreshold = 15

// Outcome classifies what a tick did to a target.
type Outcome string

const (
	OutcomeCreated     Outcome = "created"      // First successful probe, row created
	OutcomeUp          Outcome = "up"           // Success while already up
	OutcomeRecovered   Outcome = "recovered"    // Success while down, flipped up
	OutcomeDebounced   Outcome = "debounced"    // Failure absorbed by the counter
	OutcomeDown        Outcome = "down"         // Failure that flipped the target down
	OutcomeUnknown     Outcome = "unknown"      // Failure before the target was ever seen
	OutcomeAlreadyDown Outcome = "already_down" // Failure while already down
)

// Notice is the target-level broadcast a transition requires.
type Notice string

const (
	NoticeNone      Notice = ""
	NoticeRecovered Notice = "recovered"
	NoticeStopped   Notice = "stopped"
)

// TargetState is the persisted state a tick decision is based on.
type TargetState struct {
	Exists    bool
	Up        bool
	FailCount int
}

// Transition is the result of evaluating a probe outcome against TargetState.
type Transition struct {
	Outcome   Outcome
	Up        bool
	FailCount int
	Notice    Notice
	// Persist is false when the stored row must not be touched.
	Persist bool
}

// EvaluateSuccess decides the transition for a successful probe.
// Flip-to-up is immediate and resets the failure counter.
func EvaluateSuccess(state TargetState) Transition {
	switch {
	case !state.Exists:
		return Transition{Outcome: OutcomeCreated, Up: true, Persist: true}
	case !state.Up:
		return Transition{Outcome: OutcomeRecovered, Up: true, Notice: NoticeRecovered, Persist: true}
	default:
		return Transition{Outcome: OutcomeUp, Up: true, Persist: true}
	}
}

// EvaluateFailure decides the transition for a failed probe.
// Rule: an up target absorbs threshold-1 consecutive failures in its counter;
// the threshold-th failure flips it down, exactly once, with the counter reset.
// Unknown and already-down targets are left untouched.
func EvaluateFailure(state TargetState, threshold int) Transition {
	if !state.Exists {
		return Transition{Outcome: OutcomeUnknown}
	}
	if !state.Up {
		return Transition{Outcome: OutcomeAlreadyDown, FailCount: state.FailCount}
	}
	if threshold < 1 {
		threshold = 1
	}

	failures := state.FailCount + 1
	if failures < threshold {
		return Transition{Outcome: OutcomeDebounced, Up: true, FailCount: failures, Persist: true}
	}
	return Transition{Outcome: OutcomeDown, Up: false, FailCount: 0, Notice: NoticeStopped, Persist: true}
}
