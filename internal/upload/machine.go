package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"studiocast/internal/blob"
	"studiocast/internal/config"
	"studiocast/internal/jobsource"
	"studiocast/internal/logging"
	"studiocast/internal/services"
	"studiocast/internal/session"
	"studiocast/internal/studio"
)

const (
	writeBackTimeout  = 30 * time.Second
	writeBackAttempts = 3
	writeBackBackoff  = 2 * time.Second
)

// Sessions is the session capability used before authenticated steps.
type Sessions interface {
	Load(ctx context.Context, account string) (*session.Session, error)
	Inject(ctx context.Context, sess *session.Session, driver studio.Driver) error
	Touch(ctx context.Context, sess *session.Session) error
	Save(ctx context.Context, sess *session.Session, cookies []studio.Cookie) error
	Stale(sess *session.Session, now time.Time) bool
}

// Blobs resolves a job's source file.
type Blobs interface {
	Fetch(ctx context.Context, job jobsource.Job) (blob.Blob, error)
}

// WriteBack records terminal job states.
type WriteBack interface {
	Complete(ctx context.Context, job jobsource.Job, resultURL string) error
	Fail(ctx context.Context, job jobsource.Job, reason string) error
}

// Policy holds retry and verification timing.
type Policy struct {
	MaxAttempts   int
	Backoff       time.Duration
	MaxBackoff    time.Duration
	VerifyTimeout time.Duration
	VerifyPoll    time.Duration
}

// PolicyFromConfig maps the upload config section.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		MaxAttempts:   cfg.Upload.MaxAttempts,
		Backoff:       time.Duration(cfg.Upload.RetryBackoffSeconds) * time.Second,
		MaxBackoff:    time.Duration(cfg.Upload.MaxBackoffSeconds) * time.Second,
		VerifyTimeout: time.Duration(cfg.Upload.VerifyTimeoutSeconds) * time.Second,
		VerifyPoll:    time.Duration(cfg.Upload.VerifyPollSeconds) * time.Second,
	}
}

// backoff returns the wait before the next try after failures failed tries.
func (p Policy) backoff(failures int) time.Duration {
	if p.Backoff <= 0 || failures <= 0 {
		return 0
	}
	delay := p.Backoff
	for i := 1; i < failures; i++ {
		delay *= 2
		if p.MaxBackoff > 0 && delay >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Config    *config.Config
	Sessions  Sessions
	Blobs     Blobs
	Jobs      WriteBack
	NewDriver studio.Factory
}

// Machine executes upload attempts. One Machine may serve every account; each
// Run owns its own driver.
type Machine struct {
	cfg       *config.Config
	policy    Policy
	sessions  Sessions
	blobs     Blobs
	jobs      WriteBack
	newDriver studio.Factory
	logger    *slog.Logger

	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	newID   func() string
	onStale func(ctx context.Context, sess *session.Session)
}

// Option customizes a Machine.
type Option func(*Machine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSleeper overrides the context-aware sleep used for backoff and polling.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Machine) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// WithPolicy overrides the retry policy derived from config.
func WithPolicy(p Policy) Option {
	return func(m *Machine) {
		m.policy = p
	}
}

// WithStaleSessionHook is called when a loaded session exceeds the staleness
// threshold. The upload continues.
func WithStaleSessionHook(fn func(ctx context.Context, sess *session.Session)) Option {
	return func(m *Machine) {
		m.onStale = fn
	}
}

// New constructs a machine.
func New(deps Deps, logger *slog.Logger, opts ...Option) *Machine {
	m := &Machine{
		cfg:       deps.Config,
		policy:    PolicyFromConfig(deps.Config),
		sessions:  deps.Sessions,
		blobs:     deps.Blobs,
		jobs:      deps.Jobs,
		newDriver: deps.NewDriver,
		logger:    logging.NewComponentLogger(logger, "upload"),
		now:       time.Now,
		sleep:     sleepContext,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.policy.MaxAttempts < 1 {
		m.policy.MaxAttempts = 1
	}
	return m
}

// run carries the per-execution state shared by transitions.
type run struct {
	job     jobsource.Job
	account config.Account
	attempt *Attempt
	logger  *slog.Logger

	driver  studio.Driver
	session *session.Session
	blob    blob.Blob
	url     string
}

// Run executes job for account and writes the outcome back. It never returns
// an error; failures are reported in the Result.
func (m *Machine) Run(ctx context.Context, account string, job jobsource.Job) Result {
	acct, ok := m.cfg.AccountByName(account)
	if !ok {
		acct = config.Account{Name: account}
	}
	attempt := newAttempt(m.newID(), acct.Name, job.RowIndex, m.now())

	ctx = services.WithAccount(ctx, acct.Name)
	ctx = services.WithJobRow(ctx, job.RowIndex)
	ctx = services.WithAttemptID(ctx, attempt.ID)
	r := &run{
		job:     job,
		account: acct,
		attempt: attempt,
		logger:  logging.WithContext(ctx, m.logger),
	}
	defer r.closeDriver()

	r.logger.Info("upload started",
		logging.String(logging.FieldEventType, "upload_start"),
		logging.String("title", job.Title),
		logging.String("source", job.Source),
	)

	err := m.drive(ctx, r)
	result := Result{
		URL:        r.url,
		Attempt:    attempt,
		Source:     r.blob.Path,
		Downloaded: r.blob.Downloaded,
	}
	if err != nil {
		attempt.FinishedAt = m.now()
		result.State = StateFailed
		result.Kind = failureKind(ctx, err)
		result.Err = err
		if attempt.State != StateFailed {
			attempt.fail(StateFailed, attempt.FinishedAt, err)
		}
		m.writeFailure(ctx, r, result.Kind)
		return result
	}

	// Published: shutdown no longer affects the outcome.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeBackTimeout)
	defer cancel()
	result.WriteErr = m.complete(wctx, r)
	attempt.advance(StateDone, m.now())
	attempt.FinishedAt = m.now()
	result.State = StateDone
	m.refreshSession(wctx, r)
	r.logger.Info("upload completed",
		logging.String(logging.FieldEventType, "upload_complete"),
		logging.String("result_url", r.url),
		logging.Bool("row_updated", result.WriteErr == nil),
		logging.Int("tries", attempt.TotalTries()),
		logging.Duration("elapsed", attempt.FinishedAt.Sub(attempt.StartedAt)),
	)
	return result
}

// drive advances the attempt until Verified or a terminal failure.
func (m *Machine) drive(ctx context.Context, r *run) error {
	for r.attempt.State != StateVerified {
		if err := ctx.Err(); err != nil {
			return err
		}
		from := r.attempt.State
		to, _ := from.Next()
		r.attempt.Tries[from]++

		err := m.step(services.WithState(ctx, string(to)), r, from)
		if err == nil {
			r.attempt.advance(to, m.now())
			r.logger.Debug("state advanced",
				logging.String("from", string(from)),
				logging.String(logging.FieldState, string(to)),
			)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		retry := services.Retryable(err) && r.attempt.Failures+1 < m.policy.MaxAttempts
		if !retry {
			r.attempt.fail(StateFailed, m.now(), err)
			return err
		}
		resume := resumeState(from)
		r.attempt.fail(resume, m.now(), err)
		wait := m.policy.backoff(r.attempt.Failures)
		r.logger.Warn("transition failed; retrying",
			logging.String(logging.FieldEventType, "transition_retry"),
			logging.String("from", string(from)),
			logging.String("resume", string(resume)),
			logging.Int("failures", r.attempt.Failures),
			logging.Int("max_attempts", m.policy.MaxAttempts),
			logging.Duration("backoff", wait),
			logging.ErrorKind(err),
			logging.Error(err),
		)
		if from == StateQueued {
			r.closeDriver()
		}
		if err := m.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) step(ctx context.Context, r *run, from State) error {
	switch from {
	case StateQueued:
		return m.openSession(ctx, r)
	case StateSessionReady:
		fetched, err := m.blobs.Fetch(ctx, r.job)
		if err != nil {
			return err
		}
		r.blob = fetched
		return nil
	case StateFileReady:
		return r.driver.OpenUpload(ctx, r.blob.Path)
	case StateFormOpened:
		meta, err := Sanitize(r.job)
		if err != nil {
			return err
		}
		return r.driver.FillMetadata(ctx, meta)
	case StateMetadataFilled:
		return r.driver.ApplyToggles(ctx, m.toggles(r))
	case StateTogglesApplied:
		return r.driver.Publish(ctx, m.visibility(r))
	case StateSubmitted:
		return m.verify(ctx, r)
	default:
		return fmt.Errorf("no transition from %s", from)
	}
}

func (m *Machine) openSession(ctx context.Context, r *run) error {
	sess, err := m.sessions.Load(ctx, r.account.Name)
	if err != nil {
		return err
	}
	if m.sessions.Stale(sess, m.now()) {
		logging.WarnWithContext(r.logger, "session is stale", "session_stale",
			logging.Time("last_used", sess.LastUsed),
			logging.String(logging.FieldErrorHint, "re-export cookies for this account"),
			logging.String(logging.FieldImpact, "upload continues; the studio may require a new login"),
		)
		if m.onStale != nil {
			m.onStale(ctx, sess)
		}
	}
	if m.newDriver == nil {
		return services.Wrap(services.ErrConfiguration, "upload", "open driver", "no driver factory", nil)
	}
	driver, err := m.newDriver(ctx, r.account.Name)
	if err != nil {
		return services.Wrap(services.ErrUIDriver, "upload", "open driver", "", err)
	}
	r.driver = driver
	if err := driver.Start(ctx); err != nil {
		return markUI(err, "start driver")
	}
	if err := m.sessions.Inject(ctx, sess, driver); err != nil {
		return markUI(err, "inject session")
	}
	r.session = sess
	return nil
}

// verify polls for the result URL until it appears or the verify timeout
// elapses.
func (m *Machine) verify(ctx context.Context, r *run) error {
	deadline := m.now().Add(m.policy.VerifyTimeout)
	for {
		url, err := r.driver.ResultURL(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Debug("result url read failed", logging.Error(err))
		} else if url = strings.TrimSpace(url); url != "" {
			r.url = url
			return nil
		}
		if !m.now().Before(deadline) {
			return services.Wrap(services.ErrVerificationTimeout, "upload", "verify",
				fmt.Sprintf("no result url after %s", m.policy.VerifyTimeout), err)
		}
		if err := m.sleep(ctx, m.policy.VerifyPoll); err != nil {
			return err
		}
	}
}

// complete writes Done on a detached context. Write-back is retried on its
// own budget; a failure leaves the row InProgress and is never turned into
// Failed because the video is already published.
func (m *Machine) complete(ctx context.Context, r *run) error {
	var err error
	for i := 0; i < writeBackAttempts; i++ {
		if i > 0 {
			if sleepErr := m.sleep(ctx, writeBackBackoff); sleepErr != nil {
				err = sleepErr
				break
			}
		}
		if err = m.jobs.Complete(ctx, r.job, r.url); err == nil {
			return nil
		}
		if errors.Is(err, jobsource.ErrNotClaimed) {
			break
		}
	}
	logging.ErrorWithContext(r.logger, "could not record completed upload", "complete_write_failed",
		logging.String("result_url", r.url),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "set the row to Done with the result URL by hand"),
		logging.String(logging.FieldImpact, "video is published but the row is not marked Done"),
	)
	return err
}

func (m *Machine) writeFailure(ctx context.Context, r *run, kind services.Kind) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeBackTimeout)
	defer cancel()

	logging.ErrorWithContext(r.logger, "upload failed", "upload_failed",
		logging.String("failure_kind", string(kind)),
		logging.String("last_state", string(r.attempt.LastActive())),
		logging.Int("failures", r.attempt.Failures),
		logging.Error(r.attempt.LastErr),
		logging.String(logging.FieldErrorHint, hintFor(kind)),
	)
	if err := m.jobs.Fail(wctx, r.job, string(kind)); err != nil {
		logging.ErrorWithContext(r.logger, "could not record failed upload", "fail_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check spreadsheet access"),
			logging.String(logging.FieldImpact, "row stays InProgress until edited"),
		)
	}
}

// refreshSession touches the session and saves refreshed cookies. Failures
// are logged; the upload already succeeded.
func (m *Machine) refreshSession(ctx context.Context, r *run) {
	if r.session == nil {
		return
	}
	if err := m.sessions.Touch(ctx, r.session); err != nil {
		r.logger.Warn("session touch failed", logging.Error(err),
			logging.String(logging.FieldEventType, "session_touch_failed"),
			logging.String(logging.FieldErrorHint, "check the ledger database"))
	}
	if r.driver == nil {
		return
	}
	cookies, err := r.driver.Cookies(ctx)
	if err != nil {
		r.logger.Debug("reading refreshed cookies failed", logging.Error(err))
		return
	}
	if err := m.sessions.Save(ctx, r.session, cookies); err != nil {
		r.logger.Warn("session save failed", logging.Error(err),
			logging.String(logging.FieldEventType, "session_save_failed"),
			logging.String(logging.FieldErrorHint, "check session file permissions"))
	}
}

func (m *Machine) toggles(r *run) studio.Toggles {
	kids := m.cfg.MadeForKidsFor(r.account)
	if r.job.MadeForKids != nil {
		kids = *r.job.MadeForKids
	}
	altered := m.cfg.AlteredContentFor(r.account)
	if r.job.AlteredContent != nil {
		altered = *r.job.AlteredContent
	}
	return studio.Toggles{MadeForKids: kids, AlteredContent: altered}
}

func (m *Machine) visibility(r *run) studio.Visibility {
	if v, ok := studio.ParseVisibility(r.job.Visibility); ok {
		return v
	}
	if v, ok := studio.ParseVisibility(m.cfg.VisibilityFor(r.account)); ok {
		return v
	}
	return studio.VisibilityPublic
}

func (r *run) closeDriver() {
	if r.driver == nil {
		return
	}
	if err := r.driver.Close(); err != nil {
		r.logger.Debug("driver close failed", logging.Error(err))
	}
	r.driver = nil
}

// markUI tags unclassified driver errors as UI errors.
func markUI(err error, operation string) error {
	if services.KindOf(err) != services.KindUnknown {
		return err
	}
	return services.Wrap(services.ErrUIDriver, "upload", operation, "", err)
}

func failureKind(ctx context.Context, err error) services.Kind {
	if ctx.Err() != nil {
		return services.KindCancelled
	}
	return services.KindOf(err)
}

func hintFor(kind services.Kind) string {
	switch kind {
	case services.KindSessionMissing:
		return "export cookies for the account to its session_file"
	case services.KindSourceUnavailable:
		return "check the file column and Drive sharing"
	case services.KindValidation:
		return "fill in the title column"
	case services.KindUIDriver:
		return "run with browser.headless = false to watch the studio"
	case services.KindVerificationTimeout:
		return "check the studio for a stuck upload before resetting the row"
	case services.KindCancelled:
		return "reset the row to New to retry"
	default:
		return "see the log for details"
	}
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
