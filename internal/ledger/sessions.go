package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SessionLastUsed returns when the account session was last used successfully.
// The boolean is false when no use has been recorded.
func (s *Store) SessionLastUsed(ctx context.Context, account string) (time.Time, bool, error) {
	ctx = ensureContext(ctx)
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_used FROM session_usage WHERE account = ?`,
		strings.ToLower(strings.TrimSpace(account)),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("session last used: %w", err)
	}
	t := parseTime(raw)
	return t, !t.IsZero(), nil
}

// RecordSessionUse stores the last-used timestamp for an account session.
func (s *Store) RecordSessionUse(ctx context.Context, account string, at time.Time) error {
	account = strings.ToLower(strings.TrimSpace(account))
	if account == "" {
		return errors.New("ledger: account is required")
	}
	err := s.execWithRetry(ctx,
		`INSERT INTO session_usage (account, last_used) VALUES (?, ?)
         ON CONFLICT(account) DO UPDATE SET last_used = excluded.last_used`,
		account, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("record session use: %w", err)
	}
	return nil
}
