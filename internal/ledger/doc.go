// Package ledger persists local upload history in SQLite.
//
// The spreadsheet stays the source of truth for job status; the ledger keeps
// what the spreadsheet cannot: one row per finished upload attempt (terminal
// state, failure kind, attempt count, timings) and the last time each account
// session was used. The CLI history and accounts views read from it, and the
// session store uses it to flag stale cookies.
package ledger
