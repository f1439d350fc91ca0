// Package deps verifies the external tools scribe spawns. CheckBinaries
// feeds the status command; Checker gates task starts with memoized lookups.
package deps
