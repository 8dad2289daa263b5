package workflow

import (
	"time"

	"studiocast/internal/jobsource"
)

// AccountStatus describes one account worker.
type AccountStatus struct {
	Account  string
	InFlight *jobsource.Job
	NextSlot time.Time
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running   bool
	LastError string
	LastJob   *jobsource.Job
	Accounts  []AccountStatus
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastJob != nil {
		copy := *m.lastJob
		summary.LastJob = &copy
	}
	m.mu.RUnlock()

	for _, w := range m.sched.Workers() {
		status := AccountStatus{Account: w.Account(), NextSlot: w.NextSlot()}
		if job, ok := w.InFlight(); ok {
			status.InFlight = &job
		}
		summary.Accounts = append(summary.Accounts, status)
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *jobsource.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
