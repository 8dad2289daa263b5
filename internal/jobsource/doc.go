// Package jobsource reads upload jobs from a spreadsheet-like table and
// writes their outcome back.
//
// The table is the authoritative work queue: a header row names the columns
// and each data row is one job. Rows whose status cell reads New are pending.
// Claim flips a row to InProgress after re-reading its status, and Complete or
// Fail record the terminal status together with the result URL or failure
// kind. Writes are idempotent so callers may retry them freely.
//
// Claim serializes callers inside one process. Two processes sharing a sheet
// can still both pass the status re-read before either write lands; the
// window is one round trip wide.
package jobsource
