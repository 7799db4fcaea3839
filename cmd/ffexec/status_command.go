package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ffexec/internal/api"
	"ffexec/internal/daemonctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and executor status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			for _, line := range statusLines(status, colorize) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the status snapshot as JSON")
	return cmd
}

func statusLines(status *api.DaemonStatus, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	if status.Running {
		detail := fmt.Sprintf("Running (pid %d)", status.PID)
		if status.StartedAt != "" {
			detail += ", since " + formatTimestamp(status.StartedAt)
		}
		lines = append(lines, renderStatusLine("ffexecd", statusOK, detail, colorize))
	} else {
		lines = append(lines, renderStatusLine("ffexecd", statusWarn, "Not running (run `ffexec daemon start`)", colorize))
	}

	switch {
	case !status.Running:
		lines = append(lines, renderStatusLine("Executor", statusInfo, "Unknown", colorize))
	case status.Current != nil:
		detail := fmt.Sprintf("Busy: %s %s", shortID(status.Current.ID), commandText(status.Current.Argv))
		lines = append(lines, renderStatusLine("Executor", statusWarn, detail, colorize))
	default:
		lines = append(lines, renderStatusLine("Executor", statusOK, "Idle", colorize))
	}

	timeout := "none"
	if status.TimeoutSeconds > 0 {
		timeout = fmt.Sprintf("%ds", status.TimeoutSeconds)
	}
	lines = append(lines, renderStatusLine("Timeout", statusInfo, timeout, colorize))
	if status.JournalPath != "" {
		lines = append(lines, renderStatusLine("Journal", statusInfo, status.JournalPath, colorize))
	} else {
		lines = append(lines, renderStatusLine("Journal", statusInfo, "Disabled", colorize))
	}
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
	lines = append(lines, dependencyLines(status.Dependencies, colorize)...)
	if version := strings.TrimSpace(status.LibraryVersion); version != "" {
		lines = append(lines, renderStatusLine("Shipped build", statusInfo, version, colorize))
	}
	return lines
}

func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		if !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusError,
			fmt.Sprintf("%s (set binary.path in the config file)", strings.Join(missing, ", ")), colorize))
	}
	return lines
}
