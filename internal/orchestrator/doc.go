// Package orchestrator runs background media tasks as child processes and
// owns their lifecycle from submission to terminal state.
//
// Each accepted task gets a durable record, a per-task log file, and an
// event loop goroutine. The loop is fed parsed patches from the process
// output streams plus a final exit event, and funnels every mutation through
// one transition function so a record settles exactly once: the first
// terminal patch wins, later events can only attach the exit code, and
// progress percentages never move backwards.
package orchestrator
