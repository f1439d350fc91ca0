// Package services defines shared utilities consumed by the task
// orchestrator and the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, task kinds, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that distinguish
//     precondition failures (reported to the caller before a task exists)
//     from runtime failures (recorded on the task itself).
//
// Use these helpers when wiring new task kinds so operational behaviour
// (error handling, observability) stays uniform across the daemon.
package services
