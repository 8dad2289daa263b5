package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"studiocast/internal/config"
	"studiocast/internal/ledger"
	"studiocast/internal/logging"
	"studiocast/internal/services"
	"studiocast/internal/session"
)

func newAccountsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List accounts with session state and upload totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(cfg *config.Config, store *ledger.Store) error {
				summaries, err := store.Summaries(cmd.Context())
				if err != nil {
					return fmt.Errorf("load summaries: %w", err)
				}
				sessions := session.NewStore(cfg, store, logging.NewNop())
				now := time.Now()

				rows := make([][]string, 0, len(cfg.Accounts))
				for _, acct := range cfg.Accounts {
					state, lastUsed := describeSession(cmd, sessions, acct.Name, now)
					summary := summaries[strings.ToLower(acct.Name)]
					rows = append(rows, []string{
						acct.Name,
						state,
						lastUsed,
						strconv.Itoa(summary.Done),
						strconv.Itoa(summary.Failed),
						relativeTime(summary.LastFinished, now),
						summary.LastURL,
					})
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
					{Header: "Account"},
					{Header: "Session"},
					{Header: "Last Used"},
					{Header: "Done", Align: alignRight},
					{Header: "Failed", Align: alignRight},
					{Header: "Last Upload"},
					{Header: "URL", MaxWidth: 48},
				}, rows))
				return nil
			})
		},
	}
}

func describeSession(cmd *cobra.Command, sessions *session.Store, account string, now time.Time) (string, string) {
	sess, err := sessions.Load(cmd.Context(), account)
	if err != nil {
		if errors.Is(err, services.ErrSessionMissing) {
			return "missing", "-"
		}
		return "error", "-"
	}
	state := "ok"
	if sessions.Stale(sess, now) {
		state = "stale"
	}
	return state, relativeTime(sess.LastUsed, now)
}

func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
