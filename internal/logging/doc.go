// Package logging assembles structured slog loggers and formatting helpers used
// across studiocast.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so upload code can automatically
// tag log lines with job rows, accounts, upload states, and attempt IDs. The
// package also provides retention pruning for log and download directories and
// a no-op logger for tests and wiring code that cannot fail.
package logging
