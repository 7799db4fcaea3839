package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ffexec/internal/api"
	"ffexec/internal/deps"
	"ffexec/internal/executor"
	"ffexec/internal/ffmpeg"
	"ffexec/internal/journal"
	"ffexec/internal/logging"
)

// newRunCommand executes one command in process, streaming output to stderr.
// Single-flight is enforced only within this process, not against a daemon.
func newRunCommand(ctx *commandContext) *cobra.Command {
	var timeoutSeconds int
	var envPairs []string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run [flags] -- <args...>",
		Short: "Run one command in the foreground without the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			env, err := parseEnvPairs(envPairs)
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			execOpts := []executor.Option{
				executor.WithLogger(logger),
				executor.WithTailBytes(cfg.Execution.OutputTailBytes),
			}
			if cfg.Journal.Enabled {
				store, err := journal.Open(cfg.JournalPath())
				if err != nil {
					return err
				}
				defer store.Close()
				execOpts = append(execOpts, executor.WithRecorder(store.Recorder(logger)))
			}
			exec := executor.New(execOpts...)
			if timeout := cfg.CommandTimeout(); timeout > 0 {
				exec.SetTimeout(timeout)
			}
			client := ffmpeg.NewClient(deps.NewLocator(cfg), exec,
				ffmpeg.WithLogger(logger),
				ffmpeg.WithLibraryVersion(cfg.Binary.ShippedVersion))

			stderr := cmd.ErrOrStderr()
			handler := executor.HandlerFuncs{
				Progress: func(line string) {
					if !quiet {
						fmt.Fprintln(stderr, line)
					}
				},
			}
			var opts []executor.ExecOption
			if timeoutSeconds > 0 {
				opts = append(opts, executor.WithTimeout(time.Duration(timeoutSeconds)*time.Second))
			}
			handle, err := client.Execute(runCtx, env, args, handler, opts...)
			if err != nil {
				return err
			}
			result, err := handle.Wait(context.Background())
			if err != nil {
				return err
			}

			execution := api.FromResult(result)
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			fmt.Fprintf(stdout, "%s %s in %s (exit %d)\n",
				colorizeLabel(humanLabel(execution.Outcome), outcomeKind(execution.Outcome), colorize),
				shortID(execution.ID),
				formatDurationMs(execution.DurationMs),
				execution.ExitCode)
			if !execution.Success {
				return executionError(execution)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 0, "Per-command deadline in seconds (minimum 10)")
	cmd.Flags().StringArrayVarP(&envPairs, "env", "e", nil, "Environment override KEY=VALUE (repeatable)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not stream command output")
	return cmd
}
