package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Attempt is one finished upload attempt for a spreadsheet row.
type Attempt struct {
	ID         string
	Account    string
	RowIndex   int
	Title      string
	Source     string
	State      string
	Status     string
	Reason     string
	Error      string
	ResultURL  string
	Attempts   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration reports how long the attempt ran.
func (a Attempt) Duration() time.Duration {
	if a.StartedAt.IsZero() || a.FinishedAt.IsZero() {
		return 0
	}
	return a.FinishedAt.Sub(a.StartedAt)
}

// Filter narrows ListAttempts results. Zero values match everything.
type Filter struct {
	Account string
	Status  string
	Limit   int
}

// AccountSummary aggregates history for one account.
type AccountSummary struct {
	Account      string
	Done         int
	Failed       int
	LastFinished time.Time
	LastURL      string
}

const attemptColumns = "id, account, row_index, title, source, state, status, reason, error_message, result_url, attempts, started_at, finished_at"

// RecordAttempt stores a finished attempt. Re-recording the same ID replaces it.
func (s *Store) RecordAttempt(ctx context.Context, attempt Attempt) error {
	if s == nil {
		return errors.New("ledger: store is nil")
	}
	if strings.TrimSpace(attempt.ID) == "" {
		return errors.New("ledger: attempt id is required")
	}
	if attempt.FinishedAt.IsZero() {
		attempt.FinishedAt = time.Now()
	}
	if attempt.StartedAt.IsZero() {
		attempt.StartedAt = attempt.FinishedAt
	}
	err := s.execWithRetry(ctx,
		`INSERT OR REPLACE INTO attempts (`+attemptColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID,
		attempt.Account,
		attempt.RowIndex,
		nullableString(attempt.Title),
		nullableString(attempt.Source),
		attempt.State,
		attempt.Status,
		nullableString(attempt.Reason),
		nullableString(attempt.Error),
		nullableString(attempt.ResultURL),
		attempt.Attempts,
		formatTime(attempt.StartedAt),
		formatTime(attempt.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// ListAttempts returns attempts newest first.
func (s *Store) ListAttempts(ctx context.Context, filter Filter) ([]Attempt, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + attemptColumns + ` FROM attempts`
	var (
		clauses []string
		args    []any
	)
	if account := strings.TrimSpace(filter.Account); account != "" {
		clauses = append(clauses, "account = ? COLLATE NOCASE")
		args = append(args, account)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		clauses = append(clauses, "status = ? COLLATE NOCASE")
		args = append(args, status)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY finished_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

// Summaries aggregates per-account totals.
func (s *Store) Summaries(ctx context.Context) (map[string]AccountSummary, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
        SELECT account,
               SUM(CASE WHEN status = 'Done' THEN 1 ELSE 0 END),
               SUM(CASE WHEN status = 'Failed' THEN 1 ELSE 0 END),
               MAX(finished_at)
        FROM attempts
        GROUP BY account`)
	if err != nil {
		return nil, fmt.Errorf("summarize attempts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]AccountSummary)
	for rows.Next() {
		var (
			summary AccountSummary
			last    sql.NullString
		)
		if err := rows.Scan(&summary.Account, &summary.Done, &summary.Failed, &last); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summary.LastFinished = parseTime(last.String)
		out[strings.ToLower(summary.Account)] = summary
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}

	for key, summary := range out {
		var url sql.NullString
		err := s.db.QueryRowContext(ctx,
			`SELECT result_url FROM attempts WHERE account = ? AND status = 'Done' ORDER BY finished_at DESC LIMIT 1`,
			summary.Account,
		).Scan(&url)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("last url: %w", err)
		}
		summary.LastURL = url.String
		out[key] = summary
	}
	return out, nil
}

func scanAttempt(scanner interface{ Scan(dest ...any) error }) (Attempt, error) {
	var (
		attempt    Attempt
		title      sql.NullString
		source     sql.NullString
		reason     sql.NullString
		errMessage sql.NullString
		resultURL  sql.NullString
		startedRaw string
		finished   string
	)
	if err := scanner.Scan(
		&attempt.ID,
		&attempt.Account,
		&attempt.RowIndex,
		&title,
		&source,
		&attempt.State,
		&attempt.Status,
		&reason,
		&errMessage,
		&resultURL,
		&attempt.Attempts,
		&startedRaw,
		&finished,
	); err != nil {
		return Attempt{}, err
	}
	attempt.Title = title.String
	attempt.Source = source.String
	attempt.Reason = reason.String
	attempt.Error = errMessage.String
	attempt.ResultURL = resultURL.String
	attempt.StartedAt = parseTime(startedRaw)
	attempt.FinishedAt = parseTime(finished)
	return attempt, nil
}
