package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"studiocast/internal/jobsource"
	"studiocast/internal/logging"
)

// JobProvider hands a worker its next claimed job.
type JobProvider interface {
	NextJob(ctx context.Context, account string) (jobsource.Job, bool, error)
}

// Runner executes a claimed job to completion.
type Runner interface {
	Execute(ctx context.Context, account string, job jobsource.Job)
}

// Clock abstracts time for workers.
type Clock interface {
	Now() time.Time
	// SleepUntil blocks until t or until ctx ends.
	SleepUntil(ctx context.Context, t time.Time) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) SleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Worker serializes the uploads of one account.
type Worker struct {
	account  string
	schedule Schedule
	provider JobProvider
	runner   Runner
	clock    Clock
	logger   *slog.Logger

	busy atomic.Bool
	mu   sync.Mutex
	job  *jobsource.Job
	next time.Time
}

// NewWorker constructs a worker. clock may be nil for wall time.
func NewWorker(account string, schedule Schedule, provider JobProvider, runner Runner, clock Clock, logger *slog.Logger) *Worker {
	if clock == nil {
		clock = realClock{}
	}
	return &Worker{
		account:  account,
		schedule: schedule,
		provider: provider,
		runner:   runner,
		clock:    clock,
		logger:   logging.NewComponentLogger(logger, "scheduler").With(logging.String(logging.FieldAccount, account)),
	}
}

// Account returns the worker's account name.
func (w *Worker) Account() string { return w.account }

// Run waits for each slot and processes at most one job per slot until ctx
// ends.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", logging.String(logging.FieldEventType, "worker_start"))
	defer w.logger.Info("worker stopped", logging.String(logging.FieldEventType, "worker_stop"))

	for {
		slot, ok := w.schedule.Next(w.account, w.clock.Now())
		if !ok {
			logging.WarnWithContext(w.logger, "schedule has no slots; worker idle", "schedule_empty",
				logging.String(logging.FieldErrorHint, "set schedule.times for this account"),
				logging.String(logging.FieldImpact, "this account will not upload"),
			)
			<-ctx.Done()
			return
		}
		w.setNext(slot)
		w.logger.Debug("waiting for slot", logging.Time("slot", slot))
		if err := w.clock.SleepUntil(ctx, slot); err != nil {
			return
		}
		w.RunOnce(ctx)
		if ctx.Err() != nil {
			return
		}
	}
}

// RunOnce pulls and runs at most one job now. It returns true when a job ran.
// A second caller while a job is in flight returns false immediately.
func (w *Worker) RunOnce(ctx context.Context) bool {
	if !w.busy.CompareAndSwap(false, true) {
		w.logger.Debug("attempt already in flight; skipping")
		return false
	}
	defer w.busy.Store(false)

	job, ok, err := w.provider.NextJob(ctx, w.account)
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(w.logger, "job lookup failed", "job_lookup_failed",
				logging.Error(err),
				logging.ErrorKind(err),
				logging.String(logging.FieldErrorHint, "check spreadsheet access"),
				logging.String(logging.FieldImpact, "slot skipped"),
			)
		}
		return false
	}
	if !ok {
		w.logger.Info("no pending job for slot", logging.String(logging.FieldEventType, "slot_idle"))
		return false
	}

	w.setJob(&job)
	defer w.setJob(nil)
	w.runner.Execute(ctx, w.account, job)
	return true
}

// InFlight returns the job currently executing, if any.
func (w *Worker) InFlight() (jobsource.Job, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.job == nil {
		return jobsource.Job{}, false
	}
	return *w.job, true
}

// NextSlot returns the slot the worker is waiting for.
func (w *Worker) NextSlot() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.next
}

func (w *Worker) setJob(job *jobsource.Job) {
	w.mu.Lock()
	w.job = job
	w.mu.Unlock()
}

func (w *Worker) setNext(t time.Time) {
	w.mu.Lock()
	w.next = t
	w.mu.Unlock()
}
