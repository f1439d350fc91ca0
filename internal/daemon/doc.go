// Package daemon hosts the long-running scribe process: it owns the task
// store and engine, enforces single-instance execution with a lock file,
// recovers records orphaned by an unclean shutdown, and exposes runtime
// state over an optional HTTP API alongside Prometheus metrics.
package daemon
