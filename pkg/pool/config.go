package pool

import (
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/filetools/taskpool/pkg/types"
)

// Config contains configuration for the pool
type Config struct {
	// MaxWorkers bounds the number of concurrent workers. Defaults to
	// the host core count minus one, minimum 1.
	MaxWorkers int

	// TaskTimeout is the per-task deadline applied when a task carries
	// no override
	TaskTimeout time.Duration

	// IdleTimeout is how long a worker may sit idle before it is
	// reclaimed. Zero disables reclamation.
	IdleTimeout time.Duration

	// RetryAttempts is accepted for forward compatibility but not
	// enforced by dispatch; failed tasks are not re-submitted
	RetryAttempts int

	// EnableMetrics starts the periodic Prometheus sampler
	EnableMetrics bool

	// MetricsInterval is the sampling period when metrics are enabled
	MetricsInterval time.Duration

	// MetricsRegisterer receives the pool's Prometheus collectors. A
	// fresh registry is used when nil so that multiple pools in one
	// process do not collide.
	MetricsRegisterer prometheus.Registerer

	// ShutdownGrace bounds how long Shutdown waits for workers to exit
	// before returning anyway
	ShutdownGrace time.Duration

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger for lifecycle logging (optional, defaults to the standard
	// logrus logger)
	Logger *logrus.Logger

	// OnEvent observes lifecycle events. Called from the coordinator
	// goroutine; handlers must not block. Defaults to a logger-backed
	// handler.
	OnEvent EventHandler
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	maxWorkers := runtime.NumCPU() - 1
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	return &Config{
		MaxWorkers:      maxWorkers,
		TaskTimeout:     30 * time.Second,
		IdleTimeout:     60 * time.Second,
		RetryAttempts:   3,
		EnableMetrics:   true,
		MetricsInterval: 10 * time.Second,
		ShutdownGrace:   5 * time.Second,
		Clock:           types.NewRealClock(),
	}
}

// validate checks configuration and fills optional fields
func (c *Config) validate() error {
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max workers must be positive, got %d", c.MaxWorkers)
	}
	if c.TaskTimeout <= 0 {
		return fmt.Errorf("task timeout must be positive, got %v", c.TaskTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle timeout cannot be negative, got %v", c.IdleTimeout)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative, got %d", c.RetryAttempts)
	}
	if c.EnableMetrics && c.MetricsInterval <= 0 {
		return fmt.Errorf("metrics interval must be positive, got %v", c.MetricsInterval)
	}
	if c.ShutdownGrace <= 0 {
		return fmt.Errorf("shutdown grace must be positive, got %v", c.ShutdownGrace)
	}

	if c.Clock == nil {
		c.Clock = types.NewRealClock()
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.OnEvent == nil {
		c.OnEvent = LogEvents(c.Logger)
	}
	return nil
}
