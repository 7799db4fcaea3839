package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"ffexec/internal/api"
	"ffexec/internal/deps"
	"ffexec/internal/executor"
	"ffexec/internal/ffmpeg"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check that the media binary resolves and runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			locator := deps.NewLocator(cfg)
			status := locator.Status()

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("Architecture", statusInfo, runtime.GOARCH, colorize))
			for _, line := range dependencyLines(api.FromDependencies([]deps.Status{status}), colorize) {
				fmt.Fprintln(stdout, line)
			}
			if !status.Available {
				return fmt.Errorf("media binary unavailable: %s", status.Detail)
			}

			client := ffmpeg.NewClient(locator, executor.New(),
				ffmpeg.WithLibraryVersion(cfg.Binary.ShippedVersion))
			device := client.DeviceVersion(cmd.Context())
			kind := statusOK
			if device == "" {
				kind = statusWarn
			}
			fmt.Fprintln(stdout, renderStatusLine("Device build", kind, valueOrUnknown(device), colorize))
			if library := client.LibraryVersion(); library != "" {
				fmt.Fprintln(stdout, renderStatusLine("Shipped build", statusInfo, library, colorize))
			}
			return nil
		},
	}
}
