package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studiocast/internal/cleanup"
	"studiocast/internal/config"
	"studiocast/internal/jobsource"
	"studiocast/internal/ledger"
	"studiocast/internal/logging"
	"studiocast/internal/services"
	"studiocast/internal/upload"
)

const finalizeTimeout = 30 * time.Second

// NextJob fetches pending rows and claims the first one account may take.
// upload.fetch_limit bounds the eligible rows tried, so other accounts'
// backlog never hides this account's rows.
// Transient read failures are retried with backoff; a schema problem is
// logged and yields no job for this cycle.
func (m *Manager) NextJob(ctx context.Context, account string) (jobsource.Job, bool, error) {
	logger := logging.WithContext(services.WithAccount(ctx, account), m.logger)

	jobs, err := m.fetchPending(ctx)
	if err != nil {
		m.setLastError(err)
		if services.KindOf(err) == services.KindSchema {
			logging.ErrorWithContext(logger, "spreadsheet layout invalid; no job this cycle", "jobsource_schema",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the header row against the [columns] config"),
				logging.String(logging.FieldImpact, "slot skipped"),
			)
			return jobsource.Job{}, false, nil
		}
		return jobsource.Job{}, false, err
	}

	limit := m.cfg.Upload.FetchLimit
	tried := 0
	for _, job := range jobs {
		if !m.eligible(account, job) {
			continue
		}
		if limit > 0 && tried >= limit {
			break
		}
		tried++
		claimed, err := m.source.Claim(ctx, job)
		if err != nil {
			m.setLastError(err)
			return jobsource.Job{}, false, err
		}
		if claimed {
			logger.Info("job claimed",
				logging.String(logging.FieldEventType, "job_claimed"),
				logging.Int(logging.FieldJobRow, job.RowIndex),
				logging.String("title", job.Title),
			)
			return job, true, nil
		}
	}
	return jobsource.Job{}, false, nil
}

func (m *Manager) fetchPending(ctx context.Context) ([]jobsource.Job, error) {
	attempts := m.cfg.Workflow.FetchAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second
	var lastErr error
	for i := 0; i < attempts; i++ {
		jobs, err := m.source.FetchPending(ctx, 0)
		if err == nil {
			return jobs, nil
		}
		lastErr = err
		if services.KindOf(err) != services.KindTransientIO || i == attempts-1 {
			break
		}
		m.logger.Debug("pending fetch failed; retrying",
			logging.Error(err),
			logging.Int("attempt", i+1),
			logging.Duration("delay", delay),
		)
		if err := m.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}
	return nil, lastErr
}

// eligible reports whether account may claim job. Rows naming an account
// match it case-insensitively; unassigned rows follow the unassigned policy.
func (m *Manager) eligible(account string, job jobsource.Job) bool {
	if !job.Assigned() {
		return m.cfg.Jobs.UnassignedPolicy == config.UnassignedAny
	}
	return strings.EqualFold(strings.TrimSpace(job.Account), account)
}

// Execute runs a claimed job and finalizes it.
func (m *Manager) Execute(ctx context.Context, account string, job jobsource.Job) {
	m.setLastJob(&job)
	result := m.machine.Run(ctx, account, job)

	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	finalCtx = services.WithAccount(finalCtx, account)
	finalCtx = services.WithJobRow(finalCtx, job.RowIndex)

	switch {
	case result.State == upload.StateFailed && result.Kind != services.KindCancelled:
		m.setLastError(result.Err)
	case result.WriteErr != nil:
		m.setLastError(fmt.Errorf("row %d published as %s but not marked Done: %w", job.RowIndex, result.URL, result.WriteErr))
	}
	m.record(finalCtx, account, job, result)
	m.publishResult(finalCtx, account, job, result)
	m.cleanupAfter(finalCtx, result)
}

func (m *Manager) record(ctx context.Context, account string, job jobsource.Job, result upload.Result) {
	if m.ledger == nil || result.Attempt == nil {
		return
	}
	attempt := result.Attempt
	entry := ledger.Attempt{
		ID:         attempt.ID,
		Account:    account,
		RowIndex:   job.RowIndex,
		Title:      job.Title,
		Source:     firstNonEmpty(result.Source, job.Source, job.DriveFileID, job.DriveURL),
		State:      string(attempt.LastActive()),
		Status:     string(jobsource.StatusDone),
		ResultURL:  result.URL,
		Attempts:   attempt.TotalTries(),
		StartedAt:  attempt.StartedAt,
		FinishedAt: attempt.FinishedAt,
	}
	if result.State == upload.StateFailed {
		entry.Status = string(jobsource.StatusFailed)
		entry.Reason = string(result.Kind)
		if result.Err != nil {
			entry.Error = result.Err.Error()
		}
	} else {
		entry.State = string(upload.StateDone)
		if result.WriteErr != nil {
			entry.Error = "write-back: " + result.WriteErr.Error()
		}
	}
	if err := m.ledger.RecordAttempt(ctx, entry); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "attempt history not recorded", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and disk space"),
			logging.String(logging.FieldImpact, "history and accounts views will miss this attempt"),
		)
	}
}

func (m *Manager) cleanupAfter(ctx context.Context, result upload.Result) {
	if m.cleaner == nil {
		return
	}
	if result.Source != "" {
		m.cleaner.AfterJob(ctx, cleanup.Target{
			Path:       result.Source,
			Downloaded: result.Downloaded,
			Succeeded:  result.State == upload.StateDone,
		})
	}
	m.prune()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
