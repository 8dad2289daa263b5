package workflow

import (
	"context"
	"errors"
	"fmt"

	"studiocast/internal/logging"
	"studiocast/internal/services"
)

// Start probes the job source and launches the account workers. An
// unreachable or malformed spreadsheet fails startup.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	m.mu.Unlock()

	if err := m.probe(ctx); err != nil {
		return err
	}
	m.prune()

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	m.sched.Start(runCtx)

	accounts := m.cfg.AccountNames()
	m.logger.Info("upload workers started",
		logging.String(logging.FieldEventType, "workers_started"),
		logging.Int("accounts", len(accounts)),
	)
	m.publish(ctx, eventWorkersStarted(accounts))
	return nil
}

// Stop cancels every worker and waits for them. Attempts still in flight
// fail as Cancelled.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.sched.Wait()
	m.logger.Info("upload workers stopped", logging.String(logging.FieldEventType, "workers_stopped"))
}

// RunOnce probes the job source and runs at most one job per account right
// now, ignoring schedules. It returns how many jobs ran.
func (m *Manager) RunOnce(ctx context.Context) (int, error) {
	if err := m.probe(ctx); err != nil {
		return 0, err
	}
	ran := m.sched.RunOnce(ctx)
	m.prune()
	return ran, nil
}

func (m *Manager) probe(ctx context.Context) error {
	if err := m.source.Probe(ctx); err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(m.logger, "job source unreachable at startup", "jobsource_probe_failed",
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "check google.spreadsheet_id, worksheet, column names and credentials"),
			logging.String(logging.FieldImpact, "daemon cannot start"),
		)
		if services.KindOf(err) == services.KindCancelled {
			return err
		}
		return fmt.Errorf("probe job source: %w", err)
	}
	return nil
}

func (m *Manager) prune() {
	if m.cleaner == nil {
		return
	}
	m.cleaner.Prune(m.keepFiles...)
}
