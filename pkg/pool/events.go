package pool

import (
	"time"

	"github.com/sirupsen/logrus"
)

// EventKind identifies a pool lifecycle event
type EventKind int

const (
	// EventWorkerCreated fires when a worker is lazily created
	EventWorkerCreated EventKind = iota
	// EventWorkerError fires when a worker faults mid-task
	EventWorkerError
	// EventWorkerExited fires when a worker leaves the pool
	EventWorkerExited
	// EventTaskCompleted fires when a task result resolves a caller future
	EventTaskCompleted
	// EventTaskFailed fires when a task rejects a caller future
	EventTaskFailed
	// EventShutdownInitiated fires when shutdown begins
	EventShutdownInitiated
	// EventShutdownCompleted fires when shutdown finishes
	EventShutdownCompleted
)

// String returns the string representation of EventKind
func (k EventKind) String() string {
	switch k {
	case EventWorkerCreated:
		return "worker_created"
	case EventWorkerError:
		return "worker_error"
	case EventWorkerExited:
		return "worker_exited"
	case EventTaskCompleted:
		return "task_completed"
	case EventTaskFailed:
		return "task_failed"
	case EventShutdownInitiated:
		return "shutdown_initiated"
	case EventShutdownCompleted:
		return "shutdown_completed"
	default:
		return "unknown"
	}
}

// Event is one pool lifecycle notification. Events are emitted from the
// coordinator goroutine in the order the pool observed them; the engine
// does not persist them.
type Event struct {
	Kind     EventKind
	WorkerID string
	TaskID   string
	Err      error
	Duration time.Duration
	Time     time.Time
}

// EventHandler observes pool events. Task and worker events are delivered
// from the coordinator goroutine; shutdown completion is delivered from
// the shutdown path. Handlers must return quickly and not block.
type EventHandler func(Event)

// LogEvents returns an EventHandler that writes events to the logger with
// structured fields. Task completions log at debug, faults at warn.
func LogEvents(logger *logrus.Logger) EventHandler {
	return func(ev Event) {
		fields := logrus.Fields{
			"event": ev.Kind.String(),
		}
		if ev.WorkerID != "" {
			fields["worker_id"] = ev.WorkerID
		}
		if ev.TaskID != "" {
			fields["task_id"] = ev.TaskID
		}
		if ev.Duration > 0 {
			fields["duration"] = ev.Duration
		}

		entry := logger.WithFields(fields)
		switch ev.Kind {
		case EventWorkerError, EventTaskFailed:
			entry.WithError(ev.Err).Warn("pool event")
		case EventShutdownInitiated, EventShutdownCompleted:
			entry.Info("pool event")
		default:
			entry.Debug("pool event")
		}
	}
}
