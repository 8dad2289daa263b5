package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"studiocast/internal/config"
	"studiocast/internal/deps"
	"studiocast/internal/logging"
	"studiocast/internal/services"
	"studiocast/internal/session"
)

const probeTimeout = 30 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCredentials verifies the service account file is readable. An empty
// path relies on application default credentials.
func CheckCredentials(path string) Result {
	const name = "Google credentials"

	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Passed: true, Warning: true, Detail: "not configured (using application default credentials)"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: unreadable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckSessions loads every account's cookie session. Missing sessions fail;
// stale ones pass with a warning.
func CheckSessions(ctx context.Context, cfg *config.Config) []Result {
	store := session.NewStore(cfg, nil, logging.NewNop())
	now := time.Now()
	results := make([]Result, 0, len(cfg.Accounts))
	for _, acct := range cfg.Accounts {
		name := "Session " + acct.Name
		sess, err := store.Load(ctx, acct.Name)
		if err != nil {
			detail := err.Error()
			if services.KindOf(err) == services.KindSessionMissing {
				detail = fmt.Sprintf("%s (export cookies for this account)", acct.SessionFile)
			}
			results = append(results, Result{Name: name, Detail: detail})
			continue
		}
		r := Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d cookies", len(sess.Cookies))}
		if store.Stale(sess, now) {
			r.Warning = true
			r.Detail += fmt.Sprintf(", unused since %s", sess.LastUsed.Format(time.DateOnly))
		}
		results = append(results, r)
	}
	return results
}

// CheckSystemDeps evaluates the external binaries studiocast launches.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{deps.ChromeRequirement(cfg.Browser.ChromePath)})
}

// CheckJobSource reads the spreadsheet header once.
func CheckJobSource(ctx context.Context, prober Prober) Result {
	const name = "Spreadsheet"

	checkCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := prober.Probe(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeProbeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable, header ok"}
}

func summarizeProbeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "probe timed out (Sheets API unresponsive)"
	}
	switch services.KindOf(err) {
	case services.KindSchema:
		return "header row: " + err.Error()
	case services.KindConfiguration:
		return "access denied or sheet not found: " + err.Error()
	}
	return err.Error()
}
