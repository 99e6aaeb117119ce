// Package sched is the portability seam for the main-stack/detached-task
// split the original cooperative-fiber implementation relied on: codec work
// had to run on the calling stack while cache writes ran detached so a slow
// SET never blocked the reply. Goroutines don't need the distinction — they
// already have growable stacks and run independently — but the seam is kept
// so the split stays visible at the call site instead of being flattened
// into ordinary function calls.
package sched

// Scheduler runs main-stack and detached work. The zero value is ready to
// use.
type Scheduler struct{}

// RunMainStack runs fn synchronously and returns its result. Used for work
// that must complete, and be visible to the caller, before the detached
// write is dispatched — the codec encode of a reply in dispatchWrite.
func (Scheduler) RunMainStack(fn func()) {
	fn()
}

// Go runs fn detached from the caller. Used for best-effort writes whose
// outcome the caller does not wait on.
func (Scheduler) Go(fn func()) {
	go fn()
}
