package pool

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/filetools/taskpool/pkg/types"
)

// Stats is a pool-wide aggregate snapshot. Per-worker counters are
// maintained incrementally by the coordinator; the aggregates here are
// computed on demand at query time and never block dispatch.
type Stats struct {
	// ActiveWorkers is the number of workers currently bound to a task
	ActiveWorkers int

	// TotalWorkers is the current size of the worker set
	TotalWorkers int

	// QueuedTasks is the number of tasks awaiting a free worker
	QueuedTasks int

	// PendingTasks is the number of unsettled caller futures
	PendingTasks int

	// CompletedTasks counts every finished task, successful or failed
	CompletedTasks int64

	// SuccessfulTasks counts tasks whose handler returned no error
	SuccessfulTasks int64

	// FailedTasks counts tasks whose handler returned an error or
	// whose worker crashed
	FailedTasks int64

	// AverageTaskDuration is total execution time over CompletedTasks
	AverageTaskDuration time.Duration

	// Throughput is completed tasks per second since the pool started
	Throughput float64

	// Uptime is the time since the pool started
	Uptime time.Duration
}

// snapshot computes the aggregates from live worker counters plus the
// folded counters of retired workers. Coordinator-side only.
func (p *Pool) snapshot() Stats {
	s := Stats{
		TotalWorkers: len(p.workers),
		QueuedTasks:  p.queue.len(),
		PendingTasks: p.pending.len(),
	}

	completed := p.retired.completed
	successful := p.retired.successful
	failed := p.retired.failed
	totalDuration := time.Duration(p.retired.totalDuration)

	for _, w := range p.workers {
		if w.active {
			s.ActiveWorkers++
		}
		completed += w.stats.completed
		successful += w.stats.successful
		failed += w.stats.failed
		totalDuration += w.stats.totalDuration
	}

	s.CompletedTasks = completed
	s.SuccessfulTasks = successful
	s.FailedTasks = failed
	if completed > 0 {
		s.AverageTaskDuration = totalDuration / time.Duration(completed)
	}

	if start, ok := p.startTime.Load().(time.Time); ok {
		s.Uptime = p.cfg.Clock.Since(start)
		if s.Uptime > 0 {
			s.Throughput = float64(completed) / s.Uptime.Seconds()
		}
	}
	return s
}

// workerSnapshot lists per-worker views, sorted by id for stable output
func (p *Pool) workerSnapshot() []WorkerInfo {
	out := make([]WorkerInfo, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats returns the current pool-wide aggregates. After shutdown it
// returns the final snapshot taken as the coordinator exited.
func (p *Pool) Stats() Stats {
	if atomic.LoadInt32(&p.state) == stateCreated {
		return Stats{}
	}

	reply := make(chan Stats, 1)
	select {
	case p.statsCh <- reply:
		return <-reply
	case <-p.closing:
		return p.final
	}
}

// Workers returns a point-in-time view of every live worker
func (p *Pool) Workers() []WorkerInfo {
	if atomic.LoadInt32(&p.state) == stateCreated {
		return nil
	}

	reply := make(chan []WorkerInfo, 1)
	select {
	case p.workersCh <- reply:
		return <-reply
	case <-p.closing:
		return p.finalWorkers
	}
}

// QueueLength returns the number of tasks awaiting dispatch
func (p *Pool) QueueLength() int {
	return p.Stats().QueuedTasks
}

// newMetricsRegistry returns a fresh registry so multiple pools in one
// process do not collide on collector names
func newMetricsRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// collector exports pool counters to Prometheus. Task counters and the
// duration histogram are updated by the coordinator as results arrive;
// gauges are sampled from Stats at MetricsInterval.
type collector struct {
	pool     *Pool
	interval time.Duration
	clock    types.Clock

	stopCh   chan struct{}
	stopOnce sync.Once

	workersTotal  prometheus.Gauge
	workersActive prometheus.Gauge
	tasksQueued   prometheus.Gauge
	tasksPending  prometheus.Gauge
	avgDuration   prometheus.Gauge
	throughput    prometheus.Gauge

	tasksCompleted prometheus.Counter
	tasksFailed    prometheus.Counter
	tasksExpired   prometheus.Counter
	taskDuration   prometheus.Histogram
}

func newCollector(p *Pool, reg prometheus.Registerer) *collector {
	factory := promauto.With(reg)

	return &collector{
		pool:     p,
		interval: p.cfg.MetricsInterval,
		clock:    p.cfg.Clock,
		stopCh:   make(chan struct{}),

		workersTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskpool",
			Name:      "workers_total",
			Help:      "Current number of workers in the pool",
		}),
		workersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskpool",
			Name:      "workers_active",
			Help:      "Number of workers currently executing a task",
		}),
		tasksQueued: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskpool",
			Name:      "tasks_queued",
			Help:      "Number of tasks awaiting a free worker",
		}),
		tasksPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskpool",
			Name:      "tasks_pending",
			Help:      "Number of unsettled caller futures",
		}),
		avgDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskpool",
			Name:      "task_duration_average_seconds",
			Help:      "Average task execution time",
		}),
		throughput: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskpool",
			Name:      "throughput_tasks_per_second",
			Help:      "Completed tasks per second since pool start",
		}),

		tasksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taskpool",
			Name:      "tasks_completed_total",
			Help:      "Total tasks whose handler completed successfully",
		}),
		tasksFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taskpool",
			Name:      "tasks_failed_total",
			Help:      "Total tasks that failed or crashed their worker",
		}),
		tasksExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taskpool",
			Name:      "tasks_expired_total",
			Help:      "Total tasks whose deadline passed before a result arrived",
		}),
		taskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "taskpool",
			Name:      "task_duration_seconds",
			Help:      "Task execution time distribution",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

// observeTask records one finished task. Called by the coordinator.
func (c *collector) observeTask(d time.Duration, success bool) {
	if success {
		c.tasksCompleted.Inc()
	} else {
		c.tasksFailed.Inc()
	}
	c.taskDuration.Observe(d.Seconds())
}

// observeTimeout records one expired deadline. Called by the coordinator.
func (c *collector) observeTimeout() {
	c.tasksExpired.Inc()
}

// run samples pool gauges until stopped. The coordinator exiting also
// ends the sampler, so a shutdown driven by the Start context cannot
// leave it ticking.
func (c *collector) run() {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			c.sample()
		case <-c.pool.closing:
			return
		case <-c.stopCh:
			return
		}
	}
}

func (c *collector) sample() {
	s := c.pool.Stats()
	c.workersTotal.Set(float64(s.TotalWorkers))
	c.workersActive.Set(float64(s.ActiveWorkers))
	c.tasksQueued.Set(float64(s.QueuedTasks))
	c.tasksPending.Set(float64(s.PendingTasks))
	c.avgDuration.Set(s.AverageTaskDuration.Seconds())
	c.throughput.Set(s.Throughput)
}

func (c *collector) stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}
