package pool

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/filetools/taskpool/pkg/task"
	"github.com/filetools/taskpool/pkg/types"
)

// messageKind distinguishes worker reports
type messageKind int

const (
	msgCompleted messageKind = iota
	msgFailed
	msgCrashed
)

// workerMessage is the single report a worker sends per task
type workerMessage struct {
	kind     messageKind
	workerID string
	taskID   string
	value    any
	err      error
	duration time.Duration
}

// execution carries one dispatched task and its cancellable context
type execution struct {
	task task.Task
	ctx  context.Context
}

// WorkerInfo is a point-in-time view of one worker
type WorkerInfo struct {
	// ID uniquely identifies the worker
	ID string

	// Active reports whether the worker is currently bound to a task
	Active bool

	// CurrentTaskID is the id of the executing task, empty when idle
	CurrentTaskID string

	// TasksCompleted counts every finished task, successful or not
	TasksCompleted int64

	// TasksSuccessful counts tasks whose handler returned no error
	TasksSuccessful int64

	// TasksFailed counts tasks whose handler returned an error
	TasksFailed int64

	// TotalDuration is cumulative execution time across finished tasks
	TotalDuration time.Duration

	// AverageTaskDuration is TotalDuration over TasksCompleted
	AverageTaskDuration time.Duration

	// LastTaskTime is when the worker last finished a task
	LastTaskTime time.Time
}

// workerStats are the per-worker counters the coordinator maintains
// incrementally on each completion message
type workerStats struct {
	completed     int64
	successful    int64
	failed        int64
	totalDuration time.Duration
	lastTaskTime  time.Time
}

// worker is one execution context. The run loop executes in its own
// goroutine; every other field below the marker is coordinator-owned and
// never touched from the worker side.
type worker struct {
	id     string
	taskCh chan execution
	quit   chan struct{}
	pool   *Pool

	// coordinator-owned state
	active    bool
	currentID string
	idleSince time.Time
	stats     workerStats
}

// run receives tasks until the quit channel closes. A handler panic
// unwinds the goroutine: the crash is reported and the worker is gone.
func (w *worker) run() {
	for {
		select {
		case <-w.quit:
			return
		case exec := <-w.taskCh:
			if !w.runTask(exec) {
				return
			}
		}
	}
}

// runTask executes one task and reports exactly one message for it.
// Returns false when the handler panicked and the worker must exit.
func (w *worker) runTask(exec execution) (ok bool) {
	clock := w.pool.cfg.Clock
	start := clock.Now()

	defer func() {
		if r := recover(); r != nil {
			ok = false
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)
			w.report(workerMessage{
				kind:     msgCrashed,
				workerID: w.id,
				taskID:   exec.task.ID,
				err:      fmt.Errorf("panic: %v\n%s", r, buf[:n]),
				duration: clock.Since(start),
			})
		}
	}()

	handler, found := w.pool.registry.Lookup(exec.task.Type)
	if !found {
		// a programming error on the caller side, not a worker fault
		w.report(workerMessage{
			kind:     msgFailed,
			workerID: w.id,
			taskID:   exec.task.ID,
			err:      &types.UnknownTypeError{TaskID: exec.task.ID, Type: exec.task.Type},
			duration: clock.Since(start),
		})
		return true
	}

	value, err := handler(exec.ctx, exec.task.Payload)
	duration := clock.Since(start)

	msg := workerMessage{
		workerID: w.id,
		taskID:   exec.task.ID,
		duration: duration,
	}
	if err != nil {
		msg.kind = msgFailed
		msg.err = err
	} else {
		msg.kind = msgCompleted
		msg.value = value
	}
	w.report(msg)
	return true
}

// report delivers a message to the coordinator, giving up once the pool
// is closing so zombie tasks cannot wedge the goroutine
func (w *worker) report(m workerMessage) {
	select {
	case w.pool.msgCh <- m:
	case <-w.pool.closing:
	}
}

// info builds the coordinator-side snapshot of this worker
func (w *worker) info() WorkerInfo {
	wi := WorkerInfo{
		ID:              w.id,
		Active:          w.active,
		CurrentTaskID:   w.currentID,
		TasksCompleted:  w.stats.completed,
		TasksSuccessful: w.stats.successful,
		TasksFailed:     w.stats.failed,
		TotalDuration:   w.stats.totalDuration,
		LastTaskTime:    w.stats.lastTaskTime,
	}
	if w.stats.completed > 0 {
		wi.AverageTaskDuration = w.stats.totalDuration / time.Duration(w.stats.completed)
	}
	return wi
}
