package preflight

import (
	"context"

	"studiocast/internal/config"
	"studiocast/internal/deps"
)

// Result reports the outcome of a single preflight check. Warning results
// passed but deserve operator attention.
type Result struct {
	Name    string
	Passed  bool
	Warning bool
	Detail  string
}

// Prober is the reachability check of the job source.
type Prober interface {
	Probe(ctx context.Context) error
}

// RunAll executes every check for cfg. The spreadsheet is probed only when
// prober is non-nil.
func RunAll(ctx context.Context, cfg *config.Config, prober Prober) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir),
		CheckCredentials(cfg.Google.CredentialsFile),
	}
	results = append(results, CheckSessions(ctx, cfg)...)
	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, fromStatus(status))
	}
	if prober != nil {
		results = append(results, CheckJobSource(ctx, prober))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func fromStatus(status deps.Status) Result {
	r := Result{Name: status.Name, Passed: status.Available || status.Optional}
	switch {
	case status.Available:
		r.Detail = status.Path
	case status.Optional:
		r.Warning = true
		r.Detail = status.Detail + " (optional)"
	default:
		r.Detail = status.Detail
	}
	return r
}
