package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/filetools/taskpool/pkg/task"
	"github.com/filetools/taskpool/pkg/types"
)

// Pool states
const (
	stateCreated int32 = iota
	stateRunning
	stateClosed
)

// submitReq carries one submission into the coordinator
type submitReq struct {
	t     task.Task
	reply chan submitResp
}

type submitResp struct {
	future *Future
	err    error
}

// retiredStats accumulates counters of workers that left the pool, so
// pool-wide aggregates survive crashes and idle reclamation
type retiredStats struct {
	completed     int64
	successful    int64
	failed        int64
	totalDuration int64 // nanoseconds, summed as time.Duration below
}

// Pool coordinates task admission, dispatch, completion, and shutdown
// across a bounded set of workers. All pool state is owned by a single
// coordinator goroutine; the exported methods communicate with it over
// channels and are safe for concurrent use.
type Pool struct {
	cfg      *Config
	registry *task.Registry

	state        int32
	shutdownOnce sync.Once
	finishOnce   sync.Once
	shutdownErr  error

	submitCh   chan *submitReq
	msgCh      chan workerMessage
	expireCh   chan string
	statsCh    chan chan Stats
	workersCh  chan chan []WorkerInfo
	shutdownCh chan struct{}

	// closing is closed when the coordinator goroutine exits; workers
	// and timer goroutines use it to avoid blocking forever
	closing chan struct{}

	workerWG  sync.WaitGroup
	collector *collector

	// coordinator-owned state
	workers      map[string]*worker
	queue        *taskQueue
	pending      *pendingRegistry
	retired      retiredStats
	nextWorkerID int
	startTime    atomic.Value // time.Time, set by Start

	// final is the last snapshot, taken just before the coordinator
	// exits; the close of closing publishes it
	final        Stats
	finalWorkers []WorkerInfo
}

// New creates a pool over the given handler registry. A nil config uses
// DefaultConfig.
func New(cfg *Config, registry *task.Registry) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, fmt.Errorf("handler registry cannot be nil")
	}

	return &Pool{
		cfg:        cfg,
		registry:   registry,
		submitCh:   make(chan *submitReq),
		msgCh:      make(chan workerMessage),
		expireCh:   make(chan string),
		statsCh:    make(chan chan Stats),
		workersCh:  make(chan chan []WorkerInfo),
		shutdownCh: make(chan struct{}),
		closing:    make(chan struct{}),
		workers:    make(map[string]*worker),
		queue:      newTaskQueue(),
		pending:    newPendingRegistry(),
	}, nil
}

// Registry returns the handler registry the pool dispatches against
func (p *Pool) Registry() *task.Registry {
	return p.registry
}

// Start launches the coordinator. Cancelling ctx initiates shutdown the
// same way Shutdown does.
func (p *Pool) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&p.state, stateCreated, stateRunning) {
		if atomic.LoadInt32(&p.state) == stateRunning {
			return fmt.Errorf("pool is already running")
		}
		return types.ErrPoolShuttingDown
	}

	p.startTime.Store(p.cfg.Clock.Now())

	if p.cfg.EnableMetrics {
		reg := p.cfg.MetricsRegisterer
		if reg == nil {
			reg = newMetricsRegistry()
		}
		p.collector = newCollector(p, reg)
		go p.collector.run()
	}

	go p.loop(ctx)
	return nil
}

// Submit registers the task, arms its timeout, queues it, and triggers a
// dispatch attempt. The returned future settles exactly once with the
// task result or a typed error.
func (p *Pool) Submit(t task.Task) (*Future, error) {
	switch atomic.LoadInt32(&p.state) {
	case stateCreated:
		return nil, types.ErrPoolNotStarted
	case stateClosed:
		return nil, types.ErrPoolShuttingDown
	}

	req := &submitReq{t: t, reply: make(chan submitResp, 1)}
	select {
	case p.submitCh <- req:
	case <-p.closing:
		return nil, types.ErrPoolShuttingDown
	}
	resp := <-req.reply
	return resp.future, resp.err
}

// Shutdown rejects all queued and pending work with ErrPoolShuttingDown,
// signals every worker to terminate, and waits a bounded grace period for
// them to exit. It is idempotent; concurrent and repeated calls share one
// result.
func (p *Pool) Shutdown() error {
	p.shutdownOnce.Do(func() {
		if atomic.CompareAndSwapInt32(&p.state, stateCreated, stateClosed) {
			// never started; no coordinator to stop
			close(p.closing)
			return
		}

		// closed channel so the signal also reaches a coordinator that
		// is already gone
		close(p.shutdownCh)
		<-p.closing

		workersDone := make(chan struct{})
		go func() {
			p.workerWG.Wait()
			close(workersDone)
		}()
		select {
		case <-workersDone:
		case <-p.cfg.Clock.After(p.cfg.ShutdownGrace):
			p.shutdownErr = fmt.Errorf("shutdown grace period %v expired with workers still running", p.cfg.ShutdownGrace)
		}

		p.finishShutdown()
	})
	return p.shutdownErr
}

// finishShutdown stops the sampler and emits the completion event exactly
// once, whether shutdown was driven by Shutdown or by the Start context
func (p *Pool) finishShutdown() {
	p.finishOnce.Do(func() {
		if p.collector != nil {
			p.collector.stop()
		}
		p.emit(Event{Kind: EventShutdownCompleted, Time: p.cfg.Clock.Now()})
	})
}

// IsRunning reports whether the coordinator is accepting submissions
func (p *Pool) IsRunning() bool {
	return atomic.LoadInt32(&p.state) == stateRunning
}

// IsShutdown reports whether the pool has begun or finished shutdown
func (p *Pool) IsShutdown() bool {
	return atomic.LoadInt32(&p.state) == stateClosed
}

// loop is the coordinator: the only goroutine that mutates the worker
// set, queue, and pending registry
func (p *Pool) loop(ctx context.Context) {
	defer close(p.closing)

	var idleC <-chan time.Time
	if p.cfg.IdleTimeout > 0 {
		ticker := p.cfg.Clock.NewTicker(p.cfg.IdleTimeout)
		defer ticker.Stop()
		idleC = ticker.C()
	}

	for {
		select {
		case req := <-p.submitCh:
			p.handleSubmit(req)
		case m := <-p.msgCh:
			p.handleMessage(m)
		case id := <-p.expireCh:
			p.handleExpiry(id)
		case reply := <-p.statsCh:
			reply <- p.snapshot()
		case reply := <-p.workersCh:
			reply <- p.workerSnapshot()
		case <-idleC:
			p.reclaimIdle()
		case <-p.shutdownCh:
			p.beginShutdown()
			return
		case <-ctx.Done():
			p.beginShutdown()
			return
		}
	}
}

// handleSubmit admits one task: duplicate-id check, pending entry,
// timeout timer, queue append, dispatch attempt
func (p *Pool) handleSubmit(req *submitReq) {
	t := req.t
	if t.Type == "" {
		req.reply <- submitResp{err: fmt.Errorf("task type cannot be empty")}
		return
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, exists := p.pending.get(t.ID); exists {
		req.reply <- submitResp{err: &types.DuplicateIDError{TaskID: t.ID}}
		return
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = p.cfg.TaskTimeout
	}

	now := p.cfg.Clock.Now()
	future := newFuture(t.ID)
	entry := &pendingEntry{
		future:    future,
		startTime: now,
		deadline:  now.Add(timeout),
		timeout:   timeout,
	}
	p.armTimer(t.ID, entry, timeout)
	p.pending.add(t.ID, entry)
	p.queue.push(t)

	req.reply <- submitResp{future: future}
	p.dispatch()
}

// armTimer starts the per-task expiry timer. The goroutine delivers the
// task id to the coordinator when the deadline passes; settle disarms it.
// An expiry racing a result is tolerated: whichever reaches the pending
// registry first wins, the loser is a no-op.
func (p *Pool) armTimer(id string, entry *pendingEntry, timeout time.Duration) {
	entry.timer = p.cfg.Clock.NewTimer(timeout)
	entry.timerStop = make(chan struct{})
	timerC := entry.timer.C()

	go func() {
		select {
		case <-timerC:
			select {
			case p.expireCh <- id:
			case <-p.closing:
			}
		case <-entry.timerStop:
		}
	}()
}

// handleExpiry fires a task timeout. The entry is removed and the caller
// rejected; a worker still running the task is left alone, though its
// task context is cancelled so cooperative handlers can bail out.
func (p *Pool) handleExpiry(id string) {
	entry := p.pending.remove(id)
	if entry == nil {
		// the result won the race; nothing to do
		return
	}
	p.queue.remove(id)

	err := &types.TimeoutError{TaskID: id, Timeout: entry.timeout}
	entry.settle(task.Result{TaskID: id, Success: false, Err: err}, err)
	p.emit(Event{Kind: EventTaskFailed, TaskID: id, Err: err, Time: p.cfg.Clock.Now()})
	if p.collector != nil {
		p.collector.observeTimeout()
	}
}

// handleMessage processes one worker report: completion, failure, or
// crash
func (p *Pool) handleMessage(m workerMessage) {
	now := p.cfg.Clock.Now()
	w := p.workers[m.workerID]

	if m.kind == msgCrashed {
		// the worker is gone; fold its counters and count the fatal task
		if w != nil {
			p.retire(w)
			delete(p.workers, m.workerID)
		}
		p.retired.completed++
		p.retired.failed++
		p.retired.totalDuration += int64(m.duration)

		p.emit(Event{Kind: EventWorkerError, WorkerID: m.workerID, TaskID: m.taskID, Err: m.err, Time: now})
		p.emit(Event{Kind: EventWorkerExited, WorkerID: m.workerID, Time: now})

		if entry := p.pending.remove(m.taskID); entry != nil {
			err := &types.CrashError{TaskID: m.taskID, WorkerID: m.workerID, Reason: m.err.Error()}
			entry.settle(task.Result{TaskID: m.taskID, Success: false, Err: err}, err)
			p.emit(Event{Kind: EventTaskFailed, TaskID: m.taskID, Err: err, Duration: m.duration, Time: now})
		}
		if p.collector != nil {
			p.collector.observeTask(m.duration, false)
		}
		p.dispatch()
		return
	}

	if w != nil {
		w.active = false
		w.currentID = ""
		w.idleSince = now
		w.stats.completed++
		w.stats.totalDuration += m.duration
		w.stats.lastTaskTime = now
		if m.kind == msgCompleted {
			w.stats.successful++
		} else {
			w.stats.failed++
		}
	}
	if p.collector != nil {
		p.collector.observeTask(m.duration, m.kind == msgCompleted)
	}

	entry := p.pending.remove(m.taskID)
	if entry == nil {
		// the timeout already rejected the caller; drop the late result
		p.dispatch()
		return
	}

	if m.kind == msgCompleted {
		res := task.Result{
			TaskID:   m.taskID,
			Success:  true,
			Value:    m.value,
			Duration: m.duration,
			WorkerID: m.workerID,
		}
		entry.settle(res, nil)
		p.emit(Event{Kind: EventTaskCompleted, WorkerID: m.workerID, TaskID: m.taskID, Duration: m.duration, Time: now})
	} else {
		var err error
		if errors.Is(m.err, types.ErrUnknownTaskType) {
			err = m.err
		} else {
			err = &types.ExecutionError{TaskID: m.taskID, WorkerID: m.workerID, Duration: m.duration, Cause: m.err}
		}
		entry.settle(task.Result{TaskID: m.taskID, Success: false, Err: err, Duration: m.duration, WorkerID: m.workerID}, err)
		p.emit(Event{Kind: EventTaskFailed, WorkerID: m.workerID, TaskID: m.taskID, Err: err, Duration: m.duration, Time: now})
	}
	p.dispatch()
}

// dispatch drains the queue onto idle or newly created workers until
// capacity or the queue runs out. Never runs after beginShutdown: that is
// the coordinator's final act.
func (p *Pool) dispatch() {
	for p.queue.len() > 0 {
		w := p.idleWorker()
		if w == nil {
			if len(p.workers) >= p.cfg.MaxWorkers {
				return
			}
			w = p.spawnWorker()
		}

		t, ok := p.queue.pop()
		if !ok {
			return
		}
		entry, ok := p.pending.get(t.ID)
		if !ok {
			// settled while queued; skip it
			continue
		}

		execCtx, cancel := context.WithCancel(context.Background())
		entry.cancelExec = cancel
		w.active = true
		w.currentID = t.ID
		// taskCh is buffered and the worker is idle, so this never blocks
		w.taskCh <- execution{task: t, ctx: execCtx}
	}
}

// idleWorker returns any worker not bound to a task
func (p *Pool) idleWorker() *worker {
	for _, w := range p.workers {
		if !w.active {
			return w
		}
	}
	return nil
}

// spawnWorker lazily creates one worker, within MaxWorkers
func (p *Pool) spawnWorker() *worker {
	p.nextWorkerID++
	w := &worker{
		id:        fmt.Sprintf("worker-%d", p.nextWorkerID),
		taskCh:    make(chan execution, 1),
		quit:      make(chan struct{}),
		pool:      p,
		idleSince: p.cfg.Clock.Now(),
	}
	p.workers[w.id] = w

	p.workerWG.Add(1)
	go func() {
		defer p.workerWG.Done()
		w.run()
	}()

	p.emit(Event{Kind: EventWorkerCreated, WorkerID: w.id, Time: p.cfg.Clock.Now()})
	return w
}

// reclaimIdle retires workers that sat idle past IdleTimeout
func (p *Pool) reclaimIdle() {
	now := p.cfg.Clock.Now()
	for id, w := range p.workers {
		if w.active || now.Sub(w.idleSince) < p.cfg.IdleTimeout {
			continue
		}
		close(w.quit)
		p.retire(w)
		delete(p.workers, id)
		p.emit(Event{Kind: EventWorkerExited, WorkerID: id, Time: now})
	}
}

// retire folds a departing worker's counters into the pool aggregates
func (p *Pool) retire(w *worker) {
	p.retired.completed += w.stats.completed
	p.retired.successful += w.stats.successful
	p.retired.failed += w.stats.failed
	p.retired.totalDuration += int64(w.stats.totalDuration)
}

// beginShutdown rejects everything in flight and signals every worker.
// Runs on the coordinator as its final act.
func (p *Pool) beginShutdown() {
	atomic.StoreInt32(&p.state, stateClosed)
	now := p.cfg.Clock.Now()
	p.emit(Event{Kind: EventShutdownInitiated, Time: now})

	for id, entry := range p.pending.drain() {
		entry.settle(task.Result{TaskID: id, Success: false, Err: types.ErrPoolShuttingDown}, types.ErrPoolShuttingDown)
	}
	p.queue.drain()

	for id, w := range p.workers {
		close(w.quit)
		p.retire(w)
		delete(p.workers, id)
		p.emit(Event{Kind: EventWorkerExited, WorkerID: id, Time: now})
	}

	p.final = p.snapshot()
	p.finalWorkers = nil

	// completion must fire even when nobody calls Shutdown, e.g. a pool
	// stopped solely by cancelling its Start context
	go func() {
		p.workerWG.Wait()
		p.finishShutdown()
	}()
}

// emit delivers one lifecycle event to the configured handler
func (p *Pool) emit(ev Event) {
	p.cfg.OnEvent(ev)
}
