// Package pool implements a bounded parallel task execution engine.
//
// A Pool owns a set of workers, a priority-ordered task queue, and a
// pending registry correlating task ids to caller futures. Callers submit
// heterogeneous tasks (selected by a type tag against a handler registry)
// and observe outcomes through one-shot Future handles.
//
// Architecture:
//
//   - One coordinator goroutine owns all pool state. Submissions, worker
//     completion/failure/crash messages, timer expiries, and stat queries
//     arrive as messages on channels and are processed one at a time, so
//     the worker set, queue, and pending registry are never mutated
//     concurrently.
//   - Workers are plain goroutines created lazily up to MaxWorkers, each
//     bound to at most one task at a time. A worker never touches pool
//     state; it only receives tasks on its channel and reports exactly
//     one message per task.
//   - Per-task timers fire independently of worker activity. A timeout
//     frees the caller (the future rejects with a TimeoutError) but does
//     not preempt the worker; the late result, if any, is discarded. The
//     task context is cancelled on expiry so cooperative handlers can
//     return early.
//
// Basic usage:
//
//	reg := task.NewRegistry()
//	reg.MustRegister("hash_file", hashHandler)
//
//	p, err := pool.New(nil, reg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := p.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//	defer p.Shutdown()
//
//	fut, err := p.Submit(task.Task{Type: "hash_file", Payload: "/tmp/f"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	res, err := fut.Wait(context.Background())
//
// Batch helpers: ExecuteBatch gathers every outcome without letting one
// failure abort the rest; Map processes a slice in bounded chunks and
// aborts on the first failure.
package pool
