package task

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps task types to handlers. A single registry is shared by
// every worker in a pool; registration normally happens once at startup,
// before the pool is started, but the registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds a handler to a task type. Registering an empty type, a
// nil handler, or a type that is already bound is an error.
func (r *Registry) Register(taskType string, handler HandlerFunc) error {
	if taskType == "" {
		return fmt.Errorf("task type cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler for task type %q cannot be nil", taskType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[taskType]; exists {
		return fmt.Errorf("handler for task type %q is already registered", taskType)
	}
	r.handlers[taskType] = handler
	return nil
}

// MustRegister is Register that panics on error, for wiring fixed handler
// sets at startup
func (r *Registry) MustRegister(taskType string, handler HandlerFunc) {
	if err := r.Register(taskType, handler); err != nil {
		panic(err)
	}
}

// Lookup returns the handler bound to the task type
func (r *Registry) Lookup(taskType string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[taskType]
	return handler, ok
}

// Types returns the registered task types in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for taskType := range r.handlers {
		out = append(out, taskType)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered handlers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
