package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"studiocast/internal/jobsource"
	"studiocast/internal/logging"
	"studiocast/internal/preflight"
	"studiocast/internal/services/sheets"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, credentials, sessions, Chrome and the spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var prober preflight.Prober
			if !offline {
				table, err := sheets.New(cmd.Context(), cfg)
				if err != nil {
					return fmt.Errorf("sheets client: %w", err)
				}
				prober = jobsource.New(table, cfg, logging.NewNop())
			}

			results := preflight.RunAll(cmd.Context(), cfg, prober)
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, r := range results {
				fmt.Fprintln(out, renderStatusLine(r.Name, resultKind(r), r.Detail, colorize))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			fmt.Fprintln(out, "Ready")
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the spreadsheet probe")
	return cmd
}
