package optimize

import (
	"testing"

	"jewelshot/internal/providers/kie"
)

func TestNextProcessingUntilTimeout(t *testing.T) {
	const maxAttempts = 30
	processing := &kie.TaskRecord{State: kie.TaskProcessing}

	state := NewPollState()
	for i := 0; i < maxAttempts-1; i++ {
		state = Next(state, Observation{Record: processing}, maxAttempts)
		if state.Phase != PhasePolling {
			t.Fatalf("attempt %d: phase = %d, want polling", i+1, state.Phase)
		}
		if state.Attempt != i+1 {
			t.Fatalf("attempt counter = %d, want %d", state.Attempt, i+1)
		}
	}

	state = Next(state, Observation{Record: processing}, maxAttempts)
	if state.Phase != PhaseTimedOut {
		t.Fatalf("phase = %d, want timed out", state.Phase)
	}
	if state.Attempt != maxAttempts {
		t.Fatalf("attempts = %d, want exactly %d", state.Attempt, maxAttempts)
	}
}

func TestNextSuccess(t *testing.T) {
	state := Next(NewPollState(), Observation{
		Record: &kie.TaskRecord{State: kie.TaskSucceeded, ResultURL: "https://x/out.png"},
	}, 30)
	if state.Phase != PhaseSucceeded {
		t.Fatalf("phase = %d, want succeeded", state.Phase)
	}
	if state.ResultURL != "https://x/out.png" {
		t.Fatalf("result url = %q", state.ResultURL)
	}
}

func TestNextProviderFailure(t *testing.T) {
	state := Next(NewPollState(), Observation{
		Record: &kie.TaskRecord{State: kie.TaskFailed, ErrorMessage: "content rejected"},
	}, 30)
	if state.Phase != PhaseFailed {
		t.Fatalf("phase = %d, want failed", state.Phase)
	}
	if state.Reason != "content rejected" {
		t.Fatalf("reason = %q", state.Reason)
	}
}

func TestNextCancellation(t *testing.T) {
	state := Next(NewPollState(), Observation{Canceled: true}, 30)
	if state.Phase != PhaseCanceled {
		t.Fatalf("phase = %d, want canceled", state.Phase)
	}
}

func TestNextTerminalStatesAbsorb(t *testing.T) {
	terminal := State{Phase: PhaseSucceeded, ResultURL: "https://x/out.png", Attempt: 3}
	after := Next(terminal, Observation{Record: &kie.TaskRecord{State: kie.TaskFailed}}, 30)
	if after != terminal {
		t.Fatalf("terminal state revised: %+v", after)
	}
}
