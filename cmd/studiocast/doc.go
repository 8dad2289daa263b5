// Package main hosts the studiocast CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the upload daemon in the foreground,
// checks readiness (directories, credentials, session files, Chrome and the
// spreadsheet), reports per-account session and upload history from the
// local ledger, and scaffolds configuration.
//
// Keep this package lean: behaviour belongs in the internal packages and is
// surfaced here through commands and flags.
package main
