package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/filetools/taskpool/pkg/task"
	"github.com/filetools/taskpool/pkg/types"
)

// ExecuteBatch submits every task concurrently and gathers every outcome,
// success or failure, without letting one failure abort the others. The
// output preserves input order regardless of completion order; it never
// returns an error of its own. Cancelling ctx abandons the remaining
// waits and records the context error per unsettled item.
func (p *Pool) ExecuteBatch(ctx context.Context, tasks []task.Task) []task.Result {
	futures := make([]*Future, len(tasks))
	results := make([]task.Result, len(tasks))

	for i, t := range tasks {
		future, err := p.Submit(t)
		if err != nil {
			results[i] = task.Result{TaskID: t.ID, Success: false, Err: err}
			continue
		}
		futures[i] = future
	}

	for i, future := range futures {
		if future == nil {
			continue
		}
		res, err := future.Wait(ctx)
		if err != nil {
			results[i] = task.Result{TaskID: future.TaskID(), Success: false, Err: err}
			var execErr *types.ExecutionError
			if errors.As(err, &execErr) {
				results[i].Duration = execErr.Duration
				results[i].WorkerID = execErr.WorkerID
			}
			continue
		}
		results[i] = res
	}
	return results
}

// Map processes items in chunks of at most concurrency tasks (default
// MaxWorkers), waiting for each chunk to fully settle before starting the
// next. Output order matches input order. Unlike ExecuteBatch, the first
// failure in a chunk aborts the whole map with a hard error: Map callers
// want all-or-nothing, batch callers want partial-failure visibility.
func Map[T, R any](ctx context.Context, p *Pool, items []T, taskType string, payload func(T) any, concurrency int) ([]R, error) {
	if concurrency <= 0 {
		concurrency = p.cfg.MaxWorkers
	}

	out := make([]R, 0, len(items))
	for start := 0; start < len(items); start += concurrency {
		end := start + concurrency
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		tasks := make([]task.Task, len(chunk))
		for i, item := range chunk {
			tasks[i] = task.Task{Type: taskType, Payload: payload(item)}
		}

		for _, res := range p.ExecuteBatch(ctx, tasks) {
			if !res.Success {
				return nil, fmt.Errorf("map aborted on task %s: %w", res.TaskID, res.Err)
			}
			value, ok := res.Value.(R)
			if !ok {
				var zero R
				return nil, fmt.Errorf("task %s: handler returned %T, expected %T", res.TaskID, res.Value, zero)
			}
			out = append(out, value)
		}
	}
	return out, nil
}
