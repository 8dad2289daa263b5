// Package blob resolves a job's source reference to a local file, downloading
// from Google Drive or plain HTTP when the file is not already on disk.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"studiocast/internal/config"
	"studiocast/internal/jobsource"
	"studiocast/internal/logging"
	"studiocast/internal/services"
)

const (
	lockRetryDelay = 250 * time.Millisecond
	// maxNameBytes leaves room for the digest prefix and .part/.lock
	// suffixes within the usual 255-byte file name limit.
	maxNameBytes = 200
	// Longer "extensions" are treated as part of the name when truncating.
	maxExtBytes = 16
)

// Downloader fetches a Drive file by id.
type Downloader interface {
	Download(ctx context.Context, fileID string, w io.Writer) (int64, error)
}

// HTTPDoer is the client used for plain URL downloads.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Blob is a resolved local file.
type Blob struct {
	Path string
	// Downloaded is true when the file was fetched into the download
	// directory rather than found on disk.
	Downloaded bool
	Size       int64
}

// Fetcher resolves job sources.
type Fetcher struct {
	downloadDir string
	minFree     uint64
	timeout     time.Duration
	drive       Downloader
	http        HTTPDoer
	logger      *slog.Logger
	freeSpace   func(dir string) (uint64, error)
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the client used for plain URLs.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(f *Fetcher) {
		if doer != nil {
			f.http = doer
		}
	}
}

// WithFreeSpace overrides the free-space probe.
func WithFreeSpace(fn func(dir string) (uint64, error)) Option {
	return func(f *Fetcher) {
		if fn != nil {
			f.freeSpace = fn
		}
	}
}

// NewFetcher constructs a fetcher. drive may be nil when Drive references
// are not expected; such references then fail as SourceUnavailable.
func NewFetcher(cfg *config.Config, drive Downloader, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		drive:     drive,
		http:      http.DefaultClient,
		logger:    logging.NewComponentLogger(logger, "blob"),
		freeSpace: availableBytes,
	}
	if cfg != nil {
		f.downloadDir = cfg.Paths.DownloadDir
		if cfg.Upload.MinFreeDiskMB > 0 {
			f.minFree = uint64(cfg.Upload.MinFreeDiskMB) << 20
		}
		if cfg.Upload.DownloadTimeoutSeconds > 0 {
			f.timeout = time.Duration(cfg.Upload.DownloadTimeoutSeconds) * time.Second
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch resolves the job's file. An existing local path wins; otherwise the
// job's Drive id and Drive URL columns are tried in order.
func (f *Fetcher) Fetch(ctx context.Context, job jobsource.Job) (Blob, error) {
	candidates, err := f.candidates(job)
	if err != nil {
		return Blob{}, err
	}

	var lastErr error
	for _, ref := range candidates {
		blob, err := f.fetchRef(ctx, ref, downloadName(job, ref))
		if err == nil {
			return blob, nil
		}
		if ctx.Err() != nil {
			return Blob{}, ctx.Err()
		}
		f.logger.Debug("source candidate failed",
			logging.Int(logging.FieldJobRow, job.RowIndex),
			logging.String("source_kind", ref.Kind.String()),
			logging.Error(err),
		)
		lastErr = err
	}
	return Blob{}, lastErr
}

// candidates lists the references to try. Structural errors in the primary
// reference only fail the job when no Drive fallback exists.
func (f *Fetcher) candidates(job jobsource.Job) ([]Ref, error) {
	var refs []Ref
	primary, primaryErr := ParseRef(job.Source)
	if primaryErr == nil {
		refs = append(refs, primary)
	}
	if id := strings.TrimSpace(job.DriveFileID); id != "" {
		if ref, err := driveRef(id); err == nil {
			refs = append(refs, ref)
		}
	}
	if link := strings.TrimSpace(job.DriveURL); link != "" {
		if ref, err := ParseRef(link); err == nil && ref.Kind != KindLocal {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		if primaryErr != nil {
			return nil, primaryErr
		}
		return nil, structural("no usable source reference")
	}
	return refs, nil
}

func (f *Fetcher) fetchRef(ctx context.Context, ref Ref, name string) (Blob, error) {
	switch ref.Kind {
	case KindLocal:
		return f.local(ref.Value)
	case KindDrive:
		if f.drive == nil {
			return Blob{}, services.Permanent(services.Wrap(services.ErrSourceUnavailable, "blob", "drive", "drive downloads not configured", nil))
		}
		return f.download(ctx, name, func(ctx context.Context, w io.Writer) (int64, error) {
			return f.drive.Download(ctx, ref.Value, w)
		})
	case KindHTTP:
		return f.download(ctx, name, func(ctx context.Context, w io.Writer) (int64, error) {
			return f.httpGet(ctx, ref.Value, w)
		})
	default:
		return Blob{}, structural("unknown reference kind")
	}
}

func (f *Fetcher) local(p string) (Blob, error) {
	expanded, err := config.ExpandPath(p)
	if err != nil {
		return Blob{}, structural("invalid path " + p)
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Blob{}, services.Wrap(services.ErrSourceUnavailable, "blob", "local", "file not found: "+expanded, nil)
		}
		return Blob{}, services.Wrap(services.ErrSourceUnavailable, "blob", "local", expanded, err)
	}
	if info.IsDir() {
		return Blob{}, structural("source is a directory: " + expanded)
	}
	return Blob{Path: expanded, Size: info.Size()}, nil
}

// download writes into <dir>/<name>.part and renames on success. Concurrent
// fetches of the same destination serialize on <dest>.lock; a waiter that
// finds the completed file reuses it.
func (f *Fetcher) download(ctx context.Context, name string, fetch func(context.Context, io.Writer) (int64, error)) (Blob, error) {
	if f.downloadDir == "" {
		return Blob{}, services.Wrap(services.ErrConfiguration, "blob", "download", "download_dir not set", nil)
	}
	if err := os.MkdirAll(f.downloadDir, 0o755); err != nil {
		return Blob{}, services.Wrap(services.ErrSourceUnavailable, "blob", "download", "create download dir", err)
	}
	if err := f.ensureSpace(); err != nil {
		return Blob{}, err
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	dest := filepath.Join(f.downloadDir, name)
	lock := flock.New(dest + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		if ctx.Err() != nil {
			return Blob{}, ctx.Err()
		}
		return Blob{}, services.Wrap(services.ErrSourceUnavailable, "blob", "download", "lock "+dest, err)
	}
	defer func() { _ = lock.Unlock() }()

	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		f.logger.Debug("reusing downloaded file", logging.String("path", dest))
		return Blob{Path: dest, Downloaded: true, Size: info.Size()}, nil
	}

	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return Blob{}, services.Wrap(services.ErrSourceUnavailable, "blob", "download", "create "+part, err)
	}
	started := time.Now()
	n, fetchErr := fetch(ctx, out)
	closeErr := out.Close()
	if fetchErr == nil && closeErr != nil {
		fetchErr = services.Wrap(services.ErrSourceUnavailable, "blob", "download", "close "+part, closeErr)
	}
	if fetchErr == nil && n == 0 {
		fetchErr = services.Wrap(services.ErrSourceUnavailable, "blob", "download", "empty download", nil)
	}
	if fetchErr != nil {
		_ = os.Remove(part)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(fetchErr, services.ErrSourceUnavailable) {
			return Blob{}, services.Wrap(services.ErrSourceUnavailable, "blob", "download", "timed out", fetchErr)
		}
		return Blob{}, fetchErr
	}
	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return Blob{}, services.Wrap(services.ErrSourceUnavailable, "blob", "download", "finalize "+dest, err)
	}

	f.logger.Info("source downloaded",
		logging.String(logging.FieldEventType, "source_downloaded"),
		logging.String("path", dest),
		logging.Int64("size_bytes", n),
		logging.Duration("elapsed", time.Since(started)),
	)
	return Blob{Path: dest, Downloaded: true, Size: n}, nil
}

func (f *Fetcher) httpGet(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, structural("build request for " + rawURL)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return 0, ctx.Err()
		}
		return 0, services.Wrap(services.ErrSourceUnavailable, "blob", "http download", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		err := services.Wrap(services.ErrSourceUnavailable, "blob", "http download", fmt.Sprintf("%s: status %d", rawURL, resp.StatusCode), nil)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return 0, services.Permanent(err)
		}
		return 0, err
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, services.Wrap(services.ErrSourceUnavailable, "blob", "http download", rawURL, err)
	}
	return n, nil
}

func (f *Fetcher) ensureSpace() error {
	if f.minFree == 0 {
		return nil
	}
	free, err := f.freeSpace(f.downloadDir)
	if err != nil {
		f.logger.Warn("free space check failed; continuing",
			logging.Error(err),
			logging.String(logging.FieldEventType, "free_space_check_failed"),
			logging.String(logging.FieldErrorHint, "verify download_dir is on a local filesystem"),
		)
		return nil
	}
	if free < f.minFree {
		return services.Wrap(services.ErrSourceUnavailable, "blob", "download",
			fmt.Sprintf("insufficient free space in %s: %d MiB available", f.downloadDir, free>>20), nil)
	}
	return nil
}

func availableBytes(dir string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// downloadName picks the file name for a download: the base name of the
// file column when it names a file, else the URL path base, else the id. The
// name is prefixed with a digest of the reference so rows sharing a file name
// but pointing at different sources never share a download.
func downloadName(job jobsource.Job, ref Ref) string {
	return refDigest(ref) + "-" + baseName(job, ref)
}

func baseName(job jobsource.Job, ref Ref) string {
	if src := strings.TrimSpace(job.Source); src != "" {
		if parsed, err := ParseRef(src); err == nil && parsed.Kind == KindLocal {
			if base := sanitizeName(filepath.Base(src)); base != "" {
				return base
			}
		}
	}
	if ref.Kind == KindHTTP {
		if u, err := url.Parse(ref.Value); err == nil {
			if base := sanitizeName(path.Base(u.Path)); base != "" && base != "." && base != "/" {
				return base
			}
		}
	}
	name := sanitizeName(ref.Value)
	if name == "" {
		name = fmt.Sprintf("row-%d", job.RowIndex)
	}
	if filepath.Ext(name) == "" {
		name += ".mp4"
	}
	return name
}

func refDigest(ref Ref) string {
	sum := sha256.Sum256([]byte(ref.Kind.String() + "\x00" + ref.Value))
	return hex.EncodeToString(sum[:6])
}

// sanitizeName strips path separators and control characters and caps the
// name at maxNameBytes without splitting a rune.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == 0:
			b.WriteRune('_')
		case r < 0x20:
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ". ")
	if len(out) <= maxNameBytes {
		return out
	}
	ext := filepath.Ext(out)
	if len(ext) > maxExtBytes {
		ext = ""
	}
	stem := out[:len(out)-len(ext)]
	limit := maxNameBytes - len(ext)
	cut := 0
	for i, r := range stem {
		if i+utf8.RuneLen(r) > limit {
			break
		}
		cut = i + utf8.RuneLen(r)
	}
	return stem[:cut] + ext
}
