// Package logs reads task log files with bounded memory: trailing-N reads go
// through a fixed ring, resumable reads carry a byte offset, and follow mode
// polls an idle file instead of spinning. The CLI `logs` command and the
// daemon's log endpoint both page through files with it.
package logs
