package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"ffexec/internal/api"
	"ffexec/internal/process"
)

const (
	shortIDLength  = 8
	commandColumns = 48
)

var executionColumns = []tableColumn{
	{header: "ID"},
	{header: "Outcome"},
	{header: "Exit", align: alignRight},
	{header: "Duration", align: alignRight},
	{header: "Started"},
	{header: "Command", maxWidth: commandColumns},
}

func executionRows(executions []api.Execution) [][]string {
	rows := make([][]string, 0, len(executions))
	for _, exec := range executions {
		outcome := exec.Outcome
		if outcome == "" {
			outcome = exec.State
		}
		rows = append(rows, []string{
			shortID(exec.ID),
			humanLabel(outcome),
			exitCodeText(exec),
			formatDurationMs(exec.DurationMs),
			formatTimestamp(exec.StartedAt),
			commandText(exec.Argv),
		})
	}
	return rows
}

func renderExecutionDetail(out io.Writer, exec api.Execution, colorize bool) {
	outcome := exec.Outcome
	if outcome == "" {
		outcome = exec.State
	}
	kind := outcomeKind(outcome)
	fmt.Fprintf(out, "ID:        %s\n", exec.ID)
	fmt.Fprintf(out, "Command:   %s\n", commandText(exec.Argv))
	fmt.Fprintf(out, "State:     %s\n", colorizeLabel(humanLabel(outcome), kind, colorize))
	if exec.Completed() {
		fmt.Fprintf(out, "Exit code: %s\n", exitCodeText(exec))
		fmt.Fprintf(out, "Duration:  %s\n", formatDurationMs(exec.DurationMs))
	} else if exec.PID > 0 {
		fmt.Fprintf(out, "PID:       %d\n", exec.PID)
	}
	if exec.StartedAt != "" {
		fmt.Fprintf(out, "Started:   %s\n", formatTimestamp(exec.StartedAt))
	}
	if exec.FinishedAt != "" {
		fmt.Fprintf(out, "Finished:  %s\n", formatTimestamp(exec.FinishedAt))
	}
	if exec.DeadlineAt != "" && !exec.Completed() {
		fmt.Fprintf(out, "Deadline:  %s\n", formatTimestamp(exec.DeadlineAt))
	}
	if exec.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", exec.Error)
	}
	if output := strings.TrimRight(exec.Output, "\n"); output != "" {
		fmt.Fprintln(out, "Output:")
		for _, line := range strings.Split(output, "\n") {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

func exitCodeText(exec api.Execution) string {
	if !exec.Completed() {
		return "-"
	}
	return strconv.Itoa(exec.ExitCode)
}

func commandText(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return process.NewCommand(argv[0], argv[1:]...).String()
}

func formatDurationMs(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return d.String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func formatTimestamp(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return value
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
