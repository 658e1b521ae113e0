package optimize

import "jewelshot/internal/providers/kie"

// Phase enumerates the states of the polling state machine.
type Phase int

const (
	PhaseSubmitted Phase = iota
	PhasePolling
	PhaseSucceeded
	PhaseFailed
	PhaseTimedOut
	PhaseCanceled
)

// State is one snapshot of the polling machine. Attempt counts the status
// queries issued so far.
type State struct {
	Phase     Phase
	Attempt   int
	ResultURL string
	// Reason holds the provider failure message for PhaseFailed.
	Reason string
}

// Terminal reports whether the machine has produced its final answer.
func (s State) Terminal() bool {
	switch s.Phase {
	case PhaseSucceeded, PhaseFailed, PhaseTimedOut, PhaseCanceled:
		return true
	}
	return false
}

// Observation is the input to one transition: a classified task record, or a
// cancellation signal. Errors from the status call never reach the machine;
// the pipeline resolves them directly to a passthrough outcome.
type Observation struct {
	Record   *kie.TaskRecord
	Canceled bool
}

// NewPollState returns the machine's initial state.
func NewPollState() State {
	return State{Phase: PhaseSubmitted}
}

// Next is the pure transition function driving the poll loop. It performs no
// I/O and no sleeping, which keeps the decision logic testable in isolation.
// Terminal states absorb further observations.
func Next(s State, obs Observation, maxAttempts int) State {
	if s.Terminal() {
		return s
	}
	if obs.Canceled {
		return State{Phase: PhaseCanceled, Attempt: s.Attempt}
	}
	attempt := s.Attempt + 1
	if obs.Record == nil {
		return State{Phase: PhaseFailed, Attempt: attempt, Reason: CauseUnrecognized}
	}
	switch obs.Record.State {
	case kie.TaskSucceeded:
		return State{Phase: PhaseSucceeded, Attempt: attempt, ResultURL: obs.Record.ResultURL}
	case kie.TaskFailed:
		return State{Phase: PhaseFailed, Attempt: attempt, Reason: obs.Record.ErrorMessage}
	default:
		if attempt >= maxAttempts {
			return State{Phase: PhaseTimedOut, Attempt: attempt}
		}
		return State{Phase: PhasePolling, Attempt: attempt}
	}
}
