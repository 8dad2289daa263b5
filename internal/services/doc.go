// Package services defines shared utilities consumed by the upload engine and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job rows, account names, upload states, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the kinds written back to the spreadsheet (ValidationError,
//     UIDriverError, ...) and decide whether a transition may be retried.
//
// Subpackages hold the Google Sheets and Google Drive clients.
//
// Use these helpers when wiring new integrations so operational behaviour
// (error handling, observability, retries) stays uniform across the engine.
package services
