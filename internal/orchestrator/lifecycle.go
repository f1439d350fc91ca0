package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"scribe/internal/logging"
	"scribe/internal/progress"
	"scribe/internal/task"
)

type eventKind int

const (
	eventPatch eventKind = iota
	eventExited
)

// taskEvent is one message into a task's event loop: either a patch parsed
// from process output or the process exit itself.
type taskEvent struct {
	kind     eventKind
	patch    *task.Patch
	exitCode int
	err      error
}

// exitEvent converts the result of cmd.Wait into an event. A nil error is
// exit code zero; a killed or unwaitable process reports a negative code.
func exitEvent(err error) taskEvent {
	ev := taskEvent{kind: eventExited}
	if err == nil {
		return ev
	}
	ev.err = err
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		ev.exitCode = exit.ExitCode()
	} else {
		ev.exitCode = -1
	}
	return ev
}

// almostDone is where a non-terminal percentage is held when a tool claims
// 100% before its process has exited. A record only ever shows the full
// percentage once it is completed.
const almostDone = 99.9

// taskLoop owns every record mutation for one task from spawn to terminal
// state. Events arrive on a single channel, so updates are applied strictly
// in order with no locking.
type taskLoop struct {
	id       string
	kind     task.Kind
	writer   *progress.Writer
	registry *task.Registry
	tlog     *taskLog
	observer Observer
	logger   *slog.Logger
	sampler  *logging.ProgressSampler

	terminal bool
	status   task.Status
	percent  float64
}

// run consumes events until the process exit lands. The readers drain before
// the exit event is sent, so returning on it never abandons pending patches.
func (l *taskLoop) run(events <-chan taskEvent) {
	defer l.finish()
	for ev := range events {
		switch ev.kind {
		case eventPatch:
			if ev.patch != nil {
				l.transition(*ev.patch, false)
			}
		case eventExited:
			l.handleExit(ev)
			return
		}
	}
}

// transition applies one patch to the task record. It is the single writer
// of task state: the first terminal patch wins, anything arriving after it
// may only attach the process exit code, and the percentage never moves
// backwards.
func (l *taskLoop) transition(patch task.Patch, force bool) {
	if l.terminal {
		if patch.ExitCode == nil {
			return
		}
		l.persist(task.Patch{ExitCode: patch.ExitCode}, true)
		return
	}
	if patch.Percentage != nil {
		pct := *patch.Percentage
		switch {
		case pct < l.percent:
			patch.Percentage = nil
		case !patch.Terminal() && pct >= 100:
			capped := almostDone
			patch.Percentage = &capped
			l.percent = capped
		default:
			l.percent = pct
		}
	}
	if patch.Terminal() {
		l.terminal = true
		l.status = *patch.Status
		if patch.FinishedAt == nil {
			now := time.Now().UTC()
			patch.FinishedAt = &now
		}
		force = true
	} else if patch.Status != nil {
		l.status = *patch.Status
	}
	if patch.IsZero() {
		return
	}
	if !l.terminal && l.sampler.ShouldLog(l.percent, string(l.status)) {
		l.logger.Info("task progress",
			logging.String("status", string(l.status)),
			logging.Float64(logging.FieldPercent, l.percent))
	}
	l.persist(patch, force)
}

func (l *taskLoop) persist(patch task.Patch, force bool) {
	if _, err := l.writer.Apply(patch, force); err != nil {
		l.logger.Error("persist task update", logging.Error(err))
	}
}

// handleExit settles the record once the child has been reaped. Exit code
// zero completes the task unless the output parser already reached a terminal
// state, in which case only the code is recorded.
func (l *taskLoop) handleExit(ev taskEvent) {
	code := ev.exitCode
	patch := task.Patch{ExitCode: &code}
	switch {
	case l.terminal:
	case code == 0:
		patch.Merge(task.CompletionPatch())
	default:
		reason := fmt.Sprintf("process exited with code %d", code)
		if code < 0 && ev.err != nil {
			reason = fmt.Sprintf("process terminated: %v", ev.err)
		}
		patch.Merge(task.FailurePatch(reason))
	}
	l.transition(patch, true)
	l.tlog.Event("exit code %d", code)
}

// abort records a spawn-level failure. The record already exists, so the
// error lands on it instead of going back to the submitting client.
func (l *taskLoop) abort(err error) {
	l.tlog.Event("spawn failed: %v", err)
	l.transition(task.FailurePatch(err.Error()), true)
	l.finish()
}

// finish releases everything attached to the task: pending writes are
// flushed, the runtime registry entry is dropped, and the log is closed.
func (l *taskLoop) finish() {
	if _, err := l.writer.Flush(); err != nil {
		l.logger.Error("flush task record", logging.Error(err))
	}
	l.registry.Remove(l.id)
	if err := l.tlog.Close(); err != nil {
		l.logger.Debug("close task log", logging.Error(err))
	}
	if l.observer != nil && l.terminal {
		l.observer.TaskFinished(l.kind, l.status)
	}
	l.logger.Info("task settled",
		logging.String("status", string(l.status)),
		logging.Float64(logging.FieldPercent, l.percent))
}
