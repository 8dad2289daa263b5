// Package upload runs one job through the browser upload state machine.
//
// States advance Queued → SessionReady → FileReady → FormOpened →
// MetadataFilled → TogglesApplied → Submitted → Verified → Done. A failed
// transition either ends the job (session missing, validation, structural
// source errors, cancellation) or loops back to a resume point:
//
//   - source fetch failures resume at SessionReady
//   - UI failures while filling or publishing resume at FileReady, reopening
//     the form
//   - verification timeouts resume at Submitted and never publish again
//
// Every failed try counts against upload.max_attempts for the whole job, so a
// transition that always fails ends the job after exactly max_attempts tries.
// Failures are written back to the job source at the machine boundary; Run
// never returns an error.
package upload
