package testsupport

import (
	"testing"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/task"
)

// NewStore opens the task store backing cfg with a silent logger.
func NewStore(t testing.TB, cfg *config.Config) *task.Store {
	t.Helper()
	return task.NewStore(cfg.TasksFile(), logging.NewNop())
}

// SeedTask inserts a fresh record for tests and returns it.
func SeedTask(t testing.TB, store *task.Store, kind task.Kind, source string) task.Record {
	t.Helper()

	rec := task.NewRecord(kind, source)
	if err := store.Insert(rec); err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return rec
}
