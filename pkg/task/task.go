// Package task defines the unit of work scheduled by the pool and the
// registry that binds task types to their handlers.
package task

import (
	"context"
	"time"
)

// Task is a self-contained description of work. The Type field selects a
// registered handler; Payload is passed to it verbatim.
type Task struct {
	// ID uniquely identifies the task among all queued and executing
	// tasks. Left empty, the pool assigns one at submission time.
	ID string

	// Type selects the registered handler that runs the task
	Type string

	// Payload is the opaque input handed to the handler
	Payload any

	// Priority orders dispatch; higher values dispatch first. Default 0.
	Priority int

	// Timeout overrides the pool default deadline when positive
	Timeout time.Duration
}

// Result is the outcome of one task execution
type Result struct {
	// TaskID echoes the id of the submitted task
	TaskID string

	// Success reports whether the handler completed without error
	Success bool

	// Value is the handler output, present only on success
	Value any

	// Err is the failure reason, present only on failure
	Err error

	// Duration is the wall-clock time spent executing, not counting
	// queue wait
	Duration time.Duration

	// WorkerID identifies the worker that ran the task
	WorkerID string
}

// HandlerFunc executes one task body. Handlers must be safe for
// concurrent use: the pool runs them from many workers at once. The
// context is cancelled when the task deadline passes or the pool shuts
// down; handlers that honor it free their worker early.
type HandlerFunc func(ctx context.Context, payload any) (any, error)
