package executor

import (
	"time"

	"ffexec/internal/process"
)

// State is the lifecycle position of an execution.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateTimedOut
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a completed state.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}

// Outcome classifies a completed execution.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
	OutcomeKilled  Outcome = "killed"
)

func outcomeFor(state State) Outcome {
	switch state {
	case StateSucceeded:
		return OutcomeSuccess
	case StateTimedOut:
		return OutcomeTimeout
	case StateKilled:
		return OutcomeKilled
	default:
		return OutcomeFailure
	}
}

// CommandResult is the immutable outcome delivered once per execution.
type CommandResult struct {
	ID       string
	Command  process.Command
	Success  bool
	Output   string
	ExitCode int
	Outcome  Outcome
	Err      error
	Started  time.Time
	Finished time.Time
}

// Duration returns the wall-clock time between start and completion.
func (r CommandResult) Duration() time.Duration {
	if r.Started.IsZero() || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}
