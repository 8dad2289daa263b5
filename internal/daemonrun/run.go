package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"studiocast/internal/blob"
	"studiocast/internal/cleanup"
	"studiocast/internal/config"
	"studiocast/internal/daemon"
	"studiocast/internal/jobsource"
	"studiocast/internal/ledger"
	"studiocast/internal/logging"
	"studiocast/internal/notifications"
	"studiocast/internal/preflight"
	"studiocast/internal/services/drive"
	"studiocast/internal/services/sheets"
	"studiocast/internal/session"
	"studiocast/internal/studio/chrome"
	"studiocast/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel      string
	Once          bool
	SkipPreflight bool
}

// Run starts the studiocast runtime loop. With Once it runs at most one job
// per account and returns.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logPath := logging.RunLogPath(cfg.Paths.LogDir, time.Now())
	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String("run_id", uuid.NewString()))

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update studiocast.log link: %v\n", err)
	}
	pidPath := filepath.Join(cfg.Paths.StateDir, "studiocast.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := ledger.Open(cfg)
	if err != nil {
		logger.Error("open ledger", logging.Error(err))
		return err
	}

	table, err := sheets.New(signalCtx, cfg)
	if err != nil {
		store.Close()
		return fmt.Errorf("sheets client: %w", err)
	}
	driveClient, err := drive.New(signalCtx, cfg, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("drive client: %w", err)
	}
	source := jobsource.New(table, cfg, logger)

	if !opts.SkipPreflight {
		if err := checkReady(logger, preflight.RunAll(signalCtx, cfg, source)); err != nil {
			store.Close()
			return err
		}
	}
	logDependencySnapshot(logger, cfg)

	manager, err := workflow.NewManager(cfg, workflow.Deps{
		Source:    source,
		Sessions:  session.NewStore(cfg, store, logger),
		Blobs:     blob.NewFetcher(cfg, driveClient, logger),
		NewDriver: chrome.NewFactory(chrome.OptionsFromConfig(cfg), logger),
		Ledger:    store,
		Cleanup:   cleanup.New(cfg, logger),
		Notifier:  notifications.NewService(cfg),
	}, logger, workflow.WithRetainedFiles(logPath))
	if err != nil {
		store.Close()
		return fmt.Errorf("create workflow: %w", err)
	}

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if opts.Once {
		ran, err := d.RunOnce(signalCtx)
		if err != nil {
			return err
		}
		logger.Info("single pass finished",
			logging.String(logging.FieldEventType, "run_once_complete"),
			logging.Int("jobs", ran),
		)
		return nil
	}

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	<-signalCtx.Done()
	logger.Info("studiocast daemon shutting down", logging.String(logging.FieldEventType, "shutdown"))
	return nil
}

// checkReady logs every preflight result and fails when a required check
// did not pass.
func checkReady(logger *slog.Logger, results []preflight.Result) error {
	var failed []string
	for _, r := range results {
		switch {
		case !r.Passed:
			failed = append(failed, r.Name)
			logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldErrorHint, "run studiocast check for details"),
			)
		case r.Warning:
			logging.WarnWithContext(logger, "preflight warning", "preflight_warning",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
			)
		default:
			logger.Debug("preflight check passed", logging.String("check", r.Name), logging.String("detail", r.Detail))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("preflight failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "studiocast.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	chromeStatus := preflight.CheckSystemDeps(cfg)[0]
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Int("accounts", len(cfg.Accounts)),
		logging.Bool("chrome_available", chromeStatus.Available),
		logging.String("chrome_binary", chromeStatus.Path),
		logging.Bool("headless", cfg.Browser.Headless),
		logging.Bool("drive_api", cfg.Google.DriveAPI),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.String("unassigned_policy", cfg.Jobs.UnassignedPolicy),
	)
}
