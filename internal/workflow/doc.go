// Package workflow composes the job source, account scheduler, upload
// machine, ledger, cleanup and notifications into the running daemon.
//
// The Manager probes the spreadsheet once at start, then lets one scheduler
// worker per account pull jobs through NextJob and hand them to Execute.
// NextJob filters pending rows by account and claims the first eligible one;
// the claim is the only coordination between workers. Execute runs the upload
// state machine, records the attempt in the ledger, publishes notifications
// and applies the cleanup policy.
package workflow
