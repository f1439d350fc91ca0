package task_test

import (
	"sync"
	"testing"
	"time"

	"scribe/internal/task"
)

func TestRegistryLifecycle(t *testing.T) {
	reg := task.NewRegistry()

	if _, ok := reg.Get("missing"); ok {
		t.Fatal("empty registry should report absence")
	}

	state := task.ProcessState{PID: 4242, LogPath: "/tmp/t.log", StartedAt: time.Now()}
	reg.Register("t1", state)

	got, ok := reg.Get("t1")
	if !ok {
		t.Fatal("expected registered entry")
	}
	if got.PID != 4242 || got.LogPath != "/tmp/t.log" {
		t.Fatalf("unexpected state: %+v", got)
	}

	if !reg.Update("t1", func(s *task.ProcessState) { s.PID = 4343 }) {
		t.Fatal("Update should find existing entry")
	}
	got, _ = reg.Get("t1")
	if got.PID != 4343 {
		t.Fatalf("update not applied: %+v", got)
	}

	if reg.Update("missing", func(s *task.ProcessState) { s.PID = 1 }) {
		t.Fatal("Update on absent id should report false")
	}

	reg.Remove("t1")
	if _, ok := reg.Get("t1"); ok {
		t.Fatal("entry should be gone after Remove")
	}
	reg.Remove("t1") // removing twice is fine
}

func TestRegistryLenAndIDs(t *testing.T) {
	reg := task.NewRegistry()
	reg.Register("a", task.ProcessState{PID: 1})
	reg.Register("b", task.ProcessState{PID: 2})

	if reg.Len() != 2 {
		t.Fatalf("Len = %d, want 2", reg.Len())
	}
	ids := reg.IDs()
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["a"] || !seen["b"] || len(ids) != 2 {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := task.NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%8))
			reg.Register(id, task.ProcessState{PID: n})
			reg.Get(id)
			reg.Update(id, func(s *task.ProcessState) { s.PID++ })
			if n%2 == 0 {
				reg.Remove(id)
			}
		}(i)
	}
	wg.Wait()
	if reg.Len() > 8 {
		t.Fatalf("registry grew beyond distinct ids: %d", reg.Len())
	}
}
