package main

import (
	"github.com/spf13/cobra"

	"studiocast/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the upload workers in the foreground",
		Long: "Run one upload worker per configured account until interrupted.\n" +
			"With --once each account takes at most one pending job and the command exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "Process at most one job per account and exit")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.SkipPreflight, "skip-preflight", false, "Start without readiness checks")
	return cmd
}
