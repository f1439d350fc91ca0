package progress

import (
	"log/slog"
	"time"

	"scribe/internal/logging"
	"scribe/internal/task"
)

// Writer batches task patches so chatty tool output does not turn into one
// durable write per line. Patches merge into a pending accumulator; the
// accumulator is written through to the store when a flush is forced or when
// the flush interval has elapsed since the last write. Terminal patches are
// always written immediately.
//
// A Writer belongs to a single task's event loop and is not safe for
// concurrent use.
type Writer struct {
	store    *task.Store
	taskID   string
	interval time.Duration
	logger   *slog.Logger

	pending   task.Patch
	dirty     bool
	lastWrite time.Time
}

// DefaultFlushInterval is the minimum spacing between unforced durable writes.
const DefaultFlushInterval = time.Second

// NewWriter creates a batching writer for one task. A non-positive interval
// falls back to DefaultFlushInterval.
func NewWriter(store *task.Store, taskID string, interval time.Duration, logger *slog.Logger) *Writer {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Writer{
		store:    store,
		taskID:   taskID,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "progress"),
	}
}

// Apply merges patch into the pending accumulator and writes through when
// force is set, when the patch is terminal, or when the flush interval has
// elapsed. It returns the updated record when a write happened, nil when the
// patch was only accumulated.
func (w *Writer) Apply(patch task.Patch, force bool) (*task.Record, error) {
	if !patch.IsZero() {
		w.pending.Merge(patch)
		w.dirty = true
	}
	if patch.Terminal() {
		force = true
	}
	if !force && time.Since(w.lastWrite) < w.interval {
		return nil, nil
	}
	return w.flush()
}

// Flush writes any pending accumulated patch immediately.
func (w *Writer) Flush() (*task.Record, error) {
	return w.flush()
}

// Dirty reports whether unwritten patch data is pending.
func (w *Writer) Dirty() bool {
	return w.dirty
}

func (w *Writer) flush() (*task.Record, error) {
	if !w.dirty {
		return nil, nil
	}
	rec, err := w.store.Update(w.taskID, w.pending)
	if err != nil {
		// Keep the accumulator so the next flush retries the write.
		return nil, err
	}
	w.pending = task.Patch{}
	w.dirty = false
	w.lastWrite = time.Now()
	if rec == nil {
		logging.WarnWithContext(w.logger, "progress write hit unknown task id", "progress_unknown_task",
			logging.String(logging.FieldTaskID, w.taskID),
			logging.String(logging.FieldErrorHint, "the task store was replaced while a task was running"),
			logging.String(logging.FieldImpact, "progress update dropped"),
		)
	}
	return rec, nil
}
