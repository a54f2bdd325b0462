package pool

import (
	"context"
	"sync"

	"github.com/filetools/taskpool/pkg/task"
)

// Future is the caller's completion handle for one submitted task. It
// settles exactly once: with the task result on success, or with a typed
// error (timeout, execution failure, worker crash, shutdown). A result
// arriving after the future already settled is discarded.
type Future struct {
	taskID string

	once sync.Once
	done chan struct{}

	res task.Result
	err error
}

func newFuture(taskID string) *Future {
	return &Future{
		taskID: taskID,
		done:   make(chan struct{}),
	}
}

// TaskID returns the id of the task this future tracks, including a
// pool-assigned id when the submission left it empty
func (f *Future) TaskID() string {
	return f.taskID
}

// settle records the outcome. Safe to call more than once; only the first
// call wins.
func (f *Future) settle(res task.Result, err error) {
	f.once.Do(func() {
		f.res = res
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed when the future settles
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait suspends the caller until the future settles or the context ends.
// A context error abandons the wait only; the task keeps running and the
// future can still be waited on again.
func (f *Future) Wait(ctx context.Context) (task.Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return task.Result{}, ctx.Err()
	}
}
