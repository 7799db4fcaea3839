package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ffexec/internal/api"
	"ffexec/internal/ipc"
)

func newExecutionCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSubmitCommand(ctx),
		newKillCommand(ctx),
		newWaitCommand(ctx),
		newShowCommand(ctx),
		newHistoryCommand(ctx),
		newVersionCommand(ctx),
	}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var timeoutSeconds int
	var envPairs []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit [flags] -- <args...>",
		Short: "Submit a command to the daemon",
		Long: "Submit runs the configured media binary with the given arguments.\n" +
			"It fails immediately when another command is still running.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := parseEnvPairs(envPairs)
			if err != nil {
				return err
			}
			req := ipc.ExecuteRequest{
				Args:           args,
				Env:            env,
				TimeoutSeconds: timeoutSeconds,
				RequestID:      uuid.NewString(),
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Execute(req)
				if err != nil {
					return err
				}
				execution := resp.Execution
				if wait {
					done, err := client.Await(execution.ID, 0)
					if err != nil {
						return err
					}
					execution = done.Execution
				}
				if jsonOutput {
					if err := writeJSON(cmd, execution); err != nil {
						return err
					}
				} else if wait {
					renderExecutionDetail(cmd.OutOrStdout(), execution, shouldColorize(cmd.OutOrStdout()))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s\n", execution.ID)
				}
				if wait && !execution.Success {
					return executionError(execution)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the command to finish")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 0, "Per-command deadline in seconds (minimum 10)")
	cmd.Flags().StringArrayVarP(&envPairs, "env", "e", nil, "Environment override KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the execution as JSON")
	return cmd
}

func newKillCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "kill",
		Short: "Kill the in-flight command",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Kill()
				if err != nil {
					return err
				}
				if resp.Killed {
					fmt.Fprintln(cmd.OutOrStdout(), "Killed in-flight command")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No command running")
				}
				return nil
			})
		},
	}
}

func newWaitCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Block until the executor is idle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WaitReady(timeout)
				if err != nil {
					return err
				}
				if !resp.Ready {
					return fmt.Errorf("executor not ready: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Executor idle")
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Maximum time to wait (default: configured ready timeout)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				var resp *ipc.ResultResponse
				var err error
				if wait {
					resp, err = client.Await(id, 0)
				} else {
					resp, err = client.Result(id)
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp.Execution)
				}
				renderExecutionDetail(cmd.OutOrStdout(), resp.Execution, shouldColorize(cmd.OutOrStdout()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the execution to finish")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the execution as JSON")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.ExecutionListResponse{Executions: resp.Executions})
				}
				if len(resp.Executions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No executions recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(executionColumns, executionRows(resp.Executions)))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum executions to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit executions as JSON")
	return cmd
}

func newVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the device and shipped binary versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Version()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Device:  %s\n", valueOrUnknown(resp.Device))
				fmt.Fprintf(out, "Library: %s\n", valueOrUnknown(resp.Library))
				return nil
			})
		},
	}
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q: expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}

func executionError(execution api.Execution) error {
	detail := strings.TrimSpace(execution.Error)
	if detail == "" {
		detail = fmt.Sprintf("exit code %d", execution.ExitCode)
	}
	return errors.New(humanLabel(execution.Outcome) + ": " + detail)
}

func valueOrUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "unknown"
	}
	return value
}
