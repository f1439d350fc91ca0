// Package task defines the durable task model and its two stores: the JSON
// document Store that survives restarts and the in-memory Registry that
// tracks live child processes.
//
// A Record moves through a small lifecycle (starting, running, kind-specific
// in-progress states, then exactly one of completed or failed) and is only
// ever mutated through typed Patches. The split between Store and Registry is
// deliberate: everything in Record is meaningful after a restart, everything
// in ProcessState is not.
package task
