package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"studiocast/internal/config"
	"studiocast/internal/jobsource"
	"studiocast/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var filter ledger.Filter

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent upload attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = strings.TrimSpace(filter.Status)
			switch strings.ToLower(filter.Status) {
			case "", "done", "failed":
			default:
				return fmt.Errorf("invalid --status %q (want done or failed)", filter.Status)
			}
			if filter.Limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			return ctx.withLedger(func(_ *config.Config, store *ledger.Store) error {
				attempts, err := store.ListAttempts(cmd.Context(), filter)
				if err != nil {
					return fmt.Errorf("list attempts: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(attempts) == 0 {
					fmt.Fprintln(out, "No upload attempts recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(historyColumns, historyRows(attempts, time.Now())))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.Account, "account", "", "Only show attempts for this account")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only show done or failed attempts")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Maximum number of attempts (0 for all)")
	return cmd
}

var historyColumns = []column{
	{Header: "Finished"},
	{Header: "Account"},
	{Header: "Row", Align: alignRight},
	{Header: "Title", MaxWidth: 40},
	{Header: "Status"},
	{Header: "Tries", Align: alignRight},
	{Header: "Took", Align: alignRight},
	{Header: "Result", MaxWidth: 48},
}

func historyRows(attempts []ledger.Attempt, now time.Time) [][]string {
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		result := a.ResultURL
		if !strings.EqualFold(a.Status, string(jobsource.StatusDone)) {
			result = a.Reason
			if result == "" {
				result = a.Error
			}
		}
		rows = append(rows, []string{
			relativeTime(a.FinishedAt, now),
			a.Account,
			strconv.Itoa(a.RowIndex),
			a.Title,
			a.Status,
			strconv.Itoa(a.Attempts),
			formatTook(a.Duration()),
			result,
		})
	}
	return rows
}

func formatTook(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
