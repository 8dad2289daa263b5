package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"studiocast/internal/cleanup"
	"studiocast/internal/config"
	"studiocast/internal/jobsource"
	"studiocast/internal/ledger"
	"studiocast/internal/logging"
	"studiocast/internal/notifications"
	"studiocast/internal/scheduler"
	"studiocast/internal/studio"
	"studiocast/internal/upload"
)

// JobSource is the spreadsheet capability the manager and the upload machine
// share.
type JobSource interface {
	Probe(ctx context.Context) error
	FetchPending(ctx context.Context, limit int) ([]jobsource.Job, error)
	Claim(ctx context.Context, job jobsource.Job) (bool, error)
	Complete(ctx context.Context, job jobsource.Job, resultURL string) error
	Fail(ctx context.Context, job jobsource.Job, reason string) error
}

// AttemptRecorder persists finished attempts.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt ledger.Attempt) error
}

// Cleaner applies post-job file policy.
type Cleaner interface {
	AfterJob(ctx context.Context, target cleanup.Target) cleanup.Result
	Prune(exclude ...string) int
}

// Deps are the collaborators of a Manager. Ledger, Cleanup and Notifier may
// be nil.
type Deps struct {
	Source    JobSource
	Sessions  upload.Sessions
	Blobs     upload.Blobs
	NewDriver studio.Factory
	Ledger    AttemptRecorder
	Cleanup   Cleaner
	Notifier  notifications.Service
}

// Manager runs the per-account workers and finalizes their jobs.
type Manager struct {
	cfg      *config.Config
	source   JobSource
	machine  *upload.Machine
	ledger   AttemptRecorder
	cleaner  Cleaner
	notifier notifications.Service
	sched    *scheduler.Scheduler
	logger   *slog.Logger

	clock       scheduler.Clock
	sleep       func(ctx context.Context, d time.Duration) error
	machineOpts []upload.Option
	keepFiles   []string

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	lastErr error
	lastJob *jobsource.Job
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithClock sets the clock used by the scheduler workers.
func WithClock(clock scheduler.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithSleeper overrides the wait between job source fetch retries.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// WithMachineOptions passes options through to the upload machine.
func WithMachineOptions(opts ...upload.Option) Option {
	return func(m *Manager) {
		m.machineOpts = append(m.machineOpts, opts...)
	}
}

// WithRetainedFiles names files retention pruning must keep, such as the
// active run log.
func WithRetainedFiles(paths ...string) Option {
	return func(m *Manager) {
		m.keepFiles = append(m.keepFiles, paths...)
	}
}

// NewManager constructs a manager with one scheduler worker per account.
func NewManager(cfg *config.Config, deps Deps, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:      cfg,
		source:   deps.Source,
		ledger:   deps.Ledger,
		cleaner:  deps.Cleanup,
		notifier: deps.Notifier,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}

	machineOpts := append([]upload.Option{upload.WithStaleSessionHook(m.onSessionStale)}, m.machineOpts...)
	m.machine = upload.New(upload.Deps{
		Config:    cfg,
		Sessions:  deps.Sessions,
		Blobs:     deps.Blobs,
		Jobs:      deps.Source,
		NewDriver: deps.NewDriver,
	}, logger, machineOpts...)

	sched, err := scheduler.New(cfg, m, m, m.clock, logger)
	if err != nil {
		return nil, err
	}
	m.sched = sched
	return m, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
