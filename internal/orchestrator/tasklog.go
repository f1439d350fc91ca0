package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// taskLog is the append-only file that captures everything a task's child
// process printed, one file per task id. Stdout and stderr readers write
// concurrently, so appends are serialized with a mutex.
type taskLog struct {
	mu   sync.Mutex
	file *os.File
}

const (
	streamStdout = "stdout"
	streamStderr = "stderr"
	// streamSelf tags lifecycle notes written by the daemon itself, so they
	// stay distinguishable from process output.
	streamSelf = "scribe"
)

// openTaskLog creates (or reopens for append) the log file for a task id and
// returns both the handle and the path recorded on the task.
func openTaskLog(dir, id string) (*taskLog, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create task log directory: %w", err)
	}
	path := filepath.Join(dir, id+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("open task log: %w", err)
	}
	return &taskLog{file: file}, path, nil
}

// Line appends one raw output line, prefixed with the stream it came from.
func (l *taskLog) Line(stream, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	fmt.Fprintf(l.file, "[%s] %s\n", stream, line)
}

// Event appends a daemon-side note such as the spawn command or exit code.
func (l *taskLog) Event(format string, args ...any) {
	l.Line(streamSelf, fmt.Sprintf(format, args...))
}

func (l *taskLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
