// Package preflight validates the environment before tasks run: directory
// access, free disk space, input files, and external tool availability.
package preflight
