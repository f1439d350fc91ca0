package orchestrator

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"scribe/internal/logging"
	"scribe/internal/progress"
	"scribe/internal/task"
)

// commandContext is swapped in tests to control process creation.
var commandContext = exec.CommandContext

// maxLineBytes bounds a single output line. yt-dlp metadata dumps and
// fragment tables can exceed bufio's 64 KiB default.
const maxLineBytes = 1 << 20

const eventBuffer = 64

type parseFunc func(string) *task.Patch

// launch spawns the task process and wires its output into the event loop.
// Failures from here on are recorded on the task, never returned: the
// submission already succeeded from the caller's point of view.
func (o *Orchestrator) launch(rec task.Record, plan *launchPlan, tlog *taskLog) {
	loop := &taskLoop{
		id:       rec.ID,
		kind:     rec.Kind,
		writer:   progress.NewWriter(o.store, rec.ID, o.flush, o.logger),
		registry: o.registry,
		tlog:     tlog,
		observer: o.observer,
		logger: o.logger.With(
			logging.String(logging.FieldTaskID, rec.ID),
			logging.String(logging.FieldTaskKind, string(rec.Kind))),
		sampler: logging.NewProgressSampler(0),
		percent: rec.Percentage,
	}

	cmd := commandContext(o.ctx, plan.binary, plan.args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		loop.abort(fmt.Errorf("stdout pipe: %w", err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		loop.abort(fmt.Errorf("stderr pipe: %w", err))
		return
	}
	tlog.Event("spawn: %s %s", plan.binary, strings.Join(plan.args, " "))
	if err := cmd.Start(); err != nil {
		loop.abort(fmt.Errorf("start %s: %w", plan.binary, err))
		return
	}

	pid := cmd.Process.Pid
	o.registry.Register(rec.ID, task.ProcessState{
		PID:       pid,
		Handle:    cmd.Process,
		LogPath:   rec.LogPath,
		StartedAt: time.Now().UTC(),
	})
	status := task.StatusRunning
	loop.transition(task.Patch{Status: &status, PID: &pid}, true)
	loop.logger.Info("process started", logging.Int(logging.FieldPID, pid))

	events := make(chan taskEvent, eventBuffer)
	var readers sync.WaitGroup
	readers.Add(2)
	go consumeStream(&readers, streamStdout, stdout, plan.parse, tlog, events)
	go consumeStream(&readers, streamStderr, stderr, plan.parse, tlog, events)
	go func() {
		// Both pipes must be drained before Wait reaps the process.
		readers.Wait()
		events <- exitEvent(cmd.Wait())
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		loop.run(events)
	}()
}

// consumeStream reads one pipe line by line, appending every raw line to the
// task log and forwarding whatever the parser extracts.
func consumeStream(wg *sync.WaitGroup, stream string, r io.Reader, parse parseFunc, tlog *taskLog, events chan<- taskEvent) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	scanner.Split(scanOutputLines)
	for scanner.Scan() {
		line := scanner.Text()
		tlog.Line(stream, line)
		if parse == nil {
			continue
		}
		if patch := parse(line); patch != nil {
			events <- taskEvent{kind: eventPatch, patch: patch}
		}
	}
	if err := scanner.Err(); err != nil {
		tlog.Event("read %s: %v", stream, err)
	}
}

// scanOutputLines is a bufio.SplitFunc that treats \n, \r\n, and bare \r as
// line terminators. Tools that redraw progress with carriage returns still
// yield parseable lines, and a trailing unterminated line is flushed at EOF.
func scanOutputLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	i := bytes.IndexAny(data, "\r\n")
	if i < 0 {
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
	advance := i + 1
	if data[i] == '\r' {
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				advance++
			}
		} else if !atEOF {
			// A \r at the buffer edge may be half of a \r\n pair.
			return 0, nil, nil
		}
	}
	return advance, data[:i], nil
}
