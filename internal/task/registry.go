package task

import (
	"os"
	"sync"
	"time"
)

// ProcessState captures the volatile runtime side of a task: the live child
// process and where its output is being logged. None of this survives a
// daemon restart, which is why it lives here and not in the Record.
type ProcessState struct {
	PID       int
	Handle    *os.Process
	LogPath   string
	StartedAt time.Time
}

// Registry tracks runtime state for in-flight tasks, keyed by task id. It is
// purely in-memory; entries are registered after spawn and removed once the
// child process has been reaped.
type Registry struct {
	mu     sync.RWMutex
	states map[string]ProcessState
}

// NewRegistry creates an empty runtime registry.
func NewRegistry() *Registry {
	return &Registry{states: make(map[string]ProcessState)}
}

// Register associates runtime state with a task id, replacing any previous
// entry.
func (r *Registry) Register(id string, state ProcessState) {
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[id] = state
}

// Get returns the runtime state for a task id.
func (r *Registry) Get(id string) (ProcessState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[id]
	return state, ok
}

// Update mutates the state for a task id in place and reports whether the
// entry existed.
func (r *Registry) Update(id string, mutate func(*ProcessState)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[id]
	if !ok {
		return false
	}
	mutate(&state)
	r.states[id] = state
	return true
}

// Remove drops the entry for a task id. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, id)
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

// IDs returns the task ids with live runtime state, in no particular order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.states))
	for id := range r.states {
		ids = append(ids, id)
	}
	return ids
}
