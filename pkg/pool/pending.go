package pool

import (
	"context"
	"time"

	"github.com/filetools/taskpool/pkg/task"
	"github.com/filetools/taskpool/pkg/types"
)

// pendingEntry correlates a task id to the caller's future and deadline.
// Entries live from submission until a matching result arrives or the
// timeout fires, whichever happens first.
type pendingEntry struct {
	future    *Future
	startTime time.Time
	deadline  time.Time
	timeout   time.Duration

	// timer and timerStop belong to the expiry goroutine armed at
	// submission; timerStop is closed exactly once, by settle
	timer     types.Timer
	timerStop chan struct{}

	// cancelExec cancels the per-task execution context, set at dispatch
	cancelExec context.CancelFunc
}

// settle disarms the timer, cancels the execution context, and resolves
// or rejects the future. Called once per entry, by the coordinator, right
// after the entry is removed from the registry.
func (e *pendingEntry) settle(res task.Result, err error) {
	if e.timer != nil {
		e.timer.Stop()
		close(e.timerStop)
	}
	if e.cancelExec != nil {
		e.cancelExec()
	}
	e.future.settle(res, err)
}

// pendingRegistry maps in-flight task ids to their entries. Owned by the
// coordinator goroutine; no locking.
type pendingRegistry struct {
	entries map[string]*pendingEntry
}

func newPendingRegistry() *pendingRegistry {
	return &pendingRegistry{
		entries: make(map[string]*pendingEntry),
	}
}

func (r *pendingRegistry) add(id string, e *pendingEntry) {
	r.entries[id] = e
}

func (r *pendingRegistry) get(id string) (*pendingEntry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// remove takes the entry out of the registry. Returns nil when the id was
// already settled, which callers treat as a no-op.
func (r *pendingRegistry) remove(id string) *pendingEntry {
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	delete(r.entries, id)
	return e
}

// drain empties the registry and returns every remaining entry by id
func (r *pendingRegistry) drain() map[string]*pendingEntry {
	out := r.entries
	r.entries = make(map[string]*pendingEntry)
	return out
}

func (r *pendingRegistry) len() int {
	return len(r.entries)
}
