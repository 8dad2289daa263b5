// Package daemon coordinates the long-running studiocast process.
//
// It wraps the workflow manager in a single lifecycle with flock-based
// locking so only one instance drives a spreadsheet from a given state
// directory. Individual upload steps live in their own packages; the daemon
// owns startup, shutdown and the status snapshot.
package daemon
