package progress_test

import (
	"path/filepath"
	"testing"
	"time"

	"scribe/internal/logging"
	"scribe/internal/progress"
	"scribe/internal/task"
)

func newStoreWithTask(t *testing.T) (*task.Store, task.Record) {
	t.Helper()
	store := task.NewStore(filepath.Join(t.TempDir(), "tasks.json"), logging.NewNop())
	rec := task.NewRecord(task.KindDownload, "https://example.com/v")
	if err := store.Insert(rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return store, rec
}

func TestApplyWritesImmediatelyOnFirstPatch(t *testing.T) {
	store, rec := newStoreWithTask(t)
	w := progress.NewWriter(store, rec.ID, time.Hour, logging.NewNop())

	updated, err := w.Apply(task.ProgressPatch(task.StatusDownloading, 5), false)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if updated == nil {
		t.Fatal("first patch should write through (no prior write this interval)")
	}
	if updated.Percentage != 5 {
		t.Fatalf("percentage = %v, want 5", updated.Percentage)
	}
}

func TestApplyHoldsWithinInterval(t *testing.T) {
	store, rec := newStoreWithTask(t)
	w := progress.NewWriter(store, rec.ID, time.Hour, logging.NewNop())

	if _, err := w.Apply(task.ProgressPatch(task.StatusDownloading, 5), false); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	held, err := w.Apply(task.ProgressPatch(task.StatusDownloading, 6), false)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if held != nil {
		t.Fatal("second patch within interval should be held")
	}
	if !w.Dirty() {
		t.Fatal("held patch should leave the writer dirty")
	}

	got, err := store.FindByID(rec.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.Percentage != 5 {
		t.Fatalf("store should still hold first write, got %v", got.Percentage)
	}
}

func TestApplyMergesHeldPatches(t *testing.T) {
	store, rec := newStoreWithTask(t)
	w := progress.NewWriter(store, rec.ID, time.Hour, logging.NewNop())

	if _, err := w.Apply(task.ProgressPatch(task.StatusDownloading, 5), false); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	rate := "1.0MiB/s"
	if _, err := w.Apply(task.Patch{Rate: &rate}, false); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, err := w.Apply(task.ProgressPatch(task.StatusDownloading, 9), false); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	updated, err := w.Flush()
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if updated == nil {
		t.Fatal("expected flush to write")
	}
	if updated.Percentage != 9 || updated.Rate != "1.0MiB/s" {
		t.Fatalf("held patches should merge: %+v", updated)
	}
}

func TestApplyWritesAfterIntervalElapses(t *testing.T) {
	store, rec := newStoreWithTask(t)
	w := progress.NewWriter(store, rec.ID, 20*time.Millisecond, logging.NewNop())

	if _, err := w.Apply(task.ProgressPatch(task.StatusDownloading, 5), false); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	updated, err := w.Apply(task.ProgressPatch(task.StatusDownloading, 10), false)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if updated == nil {
		t.Fatal("patch after interval should write")
	}
	if updated.Percentage != 10 {
		t.Fatalf("percentage = %v, want 10", updated.Percentage)
	}
}

func TestTerminalPatchAlwaysFlushes(t *testing.T) {
	store, rec := newStoreWithTask(t)
	w := progress.NewWriter(store, rec.ID, time.Hour, logging.NewNop())

	if _, err := w.Apply(task.ProgressPatch(task.StatusDownloading, 5), false); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	// Within the interval and not explicitly forced, but terminal.
	updated, err := w.Apply(task.CompletionPatch(), false)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if updated == nil {
		t.Fatal("terminal patch must write immediately")
	}
	if updated.Status != task.StatusCompleted || updated.Percentage != 100 {
		t.Fatalf("unexpected record: %+v", updated)
	}
	if w.Dirty() {
		t.Fatal("flush should clear pending state")
	}
}

func TestForceFlushWritesHeldData(t *testing.T) {
	store, rec := newStoreWithTask(t)
	w := progress.NewWriter(store, rec.ID, time.Hour, logging.NewNop())

	if _, err := w.Apply(task.ProgressPatch(task.StatusDownloading, 5), false); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, err := w.Apply(task.ProgressPatch(task.StatusDownloading, 7), false); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	updated, err := w.Apply(task.Patch{}, true)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if updated == nil || updated.Percentage != 7 {
		t.Fatalf("forced apply should write held percentage, got %+v", updated)
	}
}

func TestFlushWithoutPendingIsNoop(t *testing.T) {
	store, rec := newStoreWithTask(t)
	w := progress.NewWriter(store, rec.ID, time.Hour, logging.NewNop())

	updated, err := w.Flush()
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if updated != nil {
		t.Fatal("nothing pending; flush should not write")
	}

	before, err := store.FindByID(rec.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := w.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	after, err := store.FindByID(rec.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatal("no-op flush must not stamp updated_at")
	}
}
