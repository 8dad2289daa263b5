// Package cleanup removes uploaded sources and prunes old logs and downloads.
// Every failure is logged and reported in the result; nothing here fails a
// job.
package cleanup

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"studiocast/internal/config"
	"studiocast/internal/logging"
)

// Target describes the file left behind by one finished job.
type Target struct {
	Path       string
	Downloaded bool
	Succeeded  bool
}

// Result lists removed paths and per-path errors.
type Result struct {
	Removed []string
	Errors  []Error
}

// Error pairs a path with its removal error.
type Error struct {
	Path string
	Err  error
}

// Service applies the cleanup policy from config.
type Service struct {
	afterUpload  bool
	afterFailure bool
	retention    int
	logDir       string
	downloadDir  string
	logger       *slog.Logger
	now          func() time.Time
}

// New constructs a Service.
func New(cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		afterUpload:  cfg.Cleanup.DeleteAfterUpload,
		afterFailure: cfg.Cleanup.DeleteAfterFailure,
		retention:    cfg.Cleanup.LogRetentionDays,
		logDir:       cfg.Paths.LogDir,
		downloadDir:  cfg.Paths.DownloadDir,
		logger:       logging.NewComponentLogger(logger, "cleanup"),
		now:          time.Now,
	}
}

// AfterJob deletes the job's source file when policy allows: after success
// when delete_after_upload is set, after failure only when
// delete_after_failure is set. Downloaded copies follow the same flags.
func (s *Service) AfterJob(ctx context.Context, target Target) Result {
	var result Result
	path := strings.TrimSpace(target.Path)
	if path == "" {
		return result
	}
	remove := s.afterUpload
	if !target.Succeeded {
		remove = s.afterFailure
	}
	logger := logging.WithContext(ctx, s.logger)
	if !remove {
		logger.Debug("source kept", logging.String("path", path), logging.Bool("succeeded", target.Succeeded))
		return result
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result
		}
		result.Errors = append(result.Errors, Error{Path: path, Err: err})
		logging.WarnWithContext(logger, "source removal failed", "source_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check file permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
		return result
	}
	result.Removed = append(result.Removed, path)
	logger.Info("source removed",
		logging.String(logging.FieldEventType, "source_cleanup"),
		logging.String("path", path),
		logging.Bool("downloaded", target.Downloaded),
		logging.Bool("succeeded", target.Succeeded),
	)
	return result
}

// Prune removes run logs and download leftovers older than the retention
// window. exclude names files to keep regardless of age, such as the
// current run log. It returns the number of files removed.
func (s *Service) Prune(exclude ...string) int {
	if s.retention <= 0 {
		return 0
	}
	cutoff := s.now().AddDate(0, 0, -s.retention)
	removed := logging.PruneFiles(s.logger, cutoff,
		logging.RetentionTarget{Dir: s.logDir, Pattern: "studiocast-*.log", Exclude: exclude},
		logging.RetentionTarget{Dir: s.downloadDir, Exclude: exclude},
	)
	if removed > 0 {
		s.logger.Info("retention pruning removed files",
			logging.String(logging.FieldEventType, "retention_prune"),
			logging.Int("removed", removed),
			logging.Int("retention_days", s.retention),
		)
	}
	return removed
}
