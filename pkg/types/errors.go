package types

import (
	"errors"
	"fmt"
	"time"
)

// Predefined errors. Callers match against these with errors.Is; the
// structured errors below carry the per-task details.
var (
	// ErrPoolShuttingDown indicates a submission was rejected because the
	// pool has begun shutdown, or a queued/pending task was cleared by it
	ErrPoolShuttingDown = errors.New("pool is shutting down")

	// ErrPoolNotStarted indicates the pool has not been started yet
	ErrPoolNotStarted = errors.New("pool is not started")

	// ErrTaskTimeout indicates the task deadline passed before a result arrived
	ErrTaskTimeout = errors.New("task timed out")

	// ErrTaskExecution indicates the handler ran and reported failure
	ErrTaskExecution = errors.New("task execution failed")

	// ErrUnknownTaskType indicates no handler is registered for the task type
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrWorkerCrashed indicates the worker died while running the task
	ErrWorkerCrashed = errors.New("worker crashed")

	// ErrDuplicateTaskID indicates a submission reused an in-flight task id
	ErrDuplicateTaskID = errors.New("duplicate task id")
)

// TimeoutError is the rejection reason for a task whose deadline passed
// before any worker reported a result
type TimeoutError struct {
	// TaskID is the id of the expired task
	TaskID string

	// Timeout is the deadline that was exceeded
	Timeout time.Duration
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s timed out after %v", e.TaskID, e.Timeout)
}

// Is reports whether the error matches ErrTaskTimeout
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTaskTimeout
}

// ExecutionError is the rejection reason for a task whose handler ran and
// returned an error
type ExecutionError struct {
	// TaskID is the id of the failed task
	TaskID string

	// WorkerID is the worker that ran the task
	WorkerID string

	// Duration is the wall-clock time spent executing
	Duration time.Duration

	// Cause is the error returned by the handler
	Cause error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %s failed on %s: %v", e.TaskID, e.WorkerID, e.Cause)
}

// Unwrap returns the handler error
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches ErrTaskExecution or the cause
func (e *ExecutionError) Is(target error) bool {
	return target == ErrTaskExecution || errors.Is(e.Cause, target)
}

// UnknownTypeError is the failure reported when a task names a type with
// no registered handler. The worker stays alive; this is a caller bug,
// not a worker fault.
type UnknownTypeError struct {
	// TaskID is the id of the rejected task
	TaskID string

	// Type is the unrecognized task type
	Type string
}

// Error implements the error interface
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("task %s: no handler registered for type %q", e.TaskID, e.Type)
}

// Is reports whether the error matches ErrUnknownTaskType
func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownTaskType
}

// CrashError is the rejection reason for a task whose worker died mid-task
type CrashError struct {
	// TaskID is the id of the task the worker was running
	TaskID string

	// WorkerID is the worker that crashed
	WorkerID string

	// Reason describes the fault, including a stack trace when available
	Reason string
}

// Error implements the error interface
func (e *CrashError) Error() string {
	return fmt.Sprintf("task %s: worker %s crashed: %s", e.TaskID, e.WorkerID, e.Reason)
}

// Is reports whether the error matches ErrWorkerCrashed
func (e *CrashError) Is(target error) bool {
	return target == ErrWorkerCrashed
}

// DuplicateIDError is the submission error for a task id that is already
// queued or executing
type DuplicateIDError struct {
	// TaskID is the reused id
	TaskID string
}

// Error implements the error interface
func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("task id %s is already in flight", e.TaskID)
}

// Is reports whether the error matches ErrDuplicateTaskID
func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateTaskID
}
