// Package preflight provides readiness checks for the paths, credentials,
// sessions, browser and spreadsheet that studiocast depends on.
//
// The daemon runs RunAll before starting workers and refuses to start when a
// required check fails. The CLI "studiocast check" command prints every
// result, including optional ones such as stale sessions.
package preflight
