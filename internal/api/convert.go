package api

import (
	"time"

	"ffexec/internal/deps"
	"ffexec/internal/executor"
	"ffexec/internal/journal"
)

// FromHandle converts an executor handle. Completed handles carry their
// delivered result.
func FromHandle(handle *executor.Handle) Execution {
	if handle == nil {
		return Execution{}
	}
	if result, ok := handle.Result(); ok {
		dto := FromResult(result)
		dto.State = handle.State().String()
		dto.PID = handle.PID()
		return dto
	}
	dto := Execution{
		ID:         handle.ID(),
		Argv:       handle.Command().Argv(),
		State:      handle.State().String(),
		StartedAt:  formatTime(handle.Started()),
		DeadlineAt: formatTime(handle.Deadline()),
		PID:        handle.PID(),
		ExitCode:   -1,
	}
	if !handle.Started().IsZero() {
		dto.DurationMs = time.Since(handle.Started()).Milliseconds()
	}
	return dto
}

// FromResult converts a delivered result.
func FromResult(result executor.CommandResult) Execution {
	dto := Execution{
		ID:         result.ID,
		Argv:       result.Command.Argv(),
		State:      stateForOutcome(string(result.Outcome)),
		Outcome:    string(result.Outcome),
		Success:    result.Success,
		ExitCode:   result.ExitCode,
		Output:     result.Output,
		StartedAt:  formatTime(result.Started),
		FinishedAt: formatTime(result.Finished),
		DurationMs: result.Duration().Milliseconds(),
	}
	if result.Err != nil {
		dto.Error = result.Err.Error()
	}
	return dto
}

// FromEntry converts a journal row.
func FromEntry(entry journal.Entry) Execution {
	return Execution{
		ID:         entry.ID,
		Argv:       append([]string(nil), entry.Argv...),
		State:      stateForOutcome(entry.Outcome),
		Outcome:    entry.Outcome,
		Success:    entry.Outcome == string(executor.OutcomeSuccess),
		ExitCode:   entry.ExitCode,
		Output:     entry.Output,
		Error:      entry.Error,
		StartedAt:  formatTime(entry.StartedAt),
		FinishedAt: formatTime(entry.FinishedAt),
		DurationMs: entry.Duration().Milliseconds(),
	}
}

// FromEntries converts journal rows, preserving order.
func FromEntries(entries []journal.Entry) []Execution {
	out := make([]Execution, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromDependencies converts dependency reports.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// ParseTime parses a timestamp produced by this package. It returns the zero
// time for empty or malformed values.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func stateForOutcome(outcome string) string {
	switch executor.Outcome(outcome) {
	case executor.OutcomeSuccess:
		return executor.StateSucceeded.String()
	case executor.OutcomeTimeout:
		return executor.StateTimedOut.String()
	case executor.OutcomeKilled:
		return executor.StateKilled.String()
	case executor.OutcomeFailure:
		return executor.StateFailed.String()
	default:
		return ""
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
