package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filetools/taskpool/pkg/task"
	"github.com/filetools/taskpool/pkg/types"
)

func TestExecuteBatch_AllSucceed(t *testing.T) {
	p := newTestPool(t, nil)
	require.NoError(t, p.Registry().Register("double", func(ctx context.Context, payload any) (any, error) {
		return payload.(int) * 2, nil
	}))

	tasks := make([]task.Task, 5)
	for i := range tasks {
		tasks[i] = task.Task{Type: "double", Payload: i}
	}

	results := p.ExecuteBatch(context.Background(), tasks)
	require.Len(t, results, 5)
	for i, res := range results {
		assert.True(t, res.Success)
		assert.Equal(t, i*2, res.Value, "output order must match input order")
	}
}

func TestExecuteBatch_PartialFailure(t *testing.T) {
	p := newTestPool(t, nil)
	registerEcho(t, p)

	failErr := errors.New("deliberate")
	require.NoError(t, p.Registry().Register("fail", func(ctx context.Context, payload any) (any, error) {
		return nil, failErr
	}))

	results := p.ExecuteBatch(context.Background(), []task.Task{
		{ID: "a", Type: "echo", Payload: "ok"},
		{ID: "b", Type: "fail"},
		{ID: "c", Type: "echo", Payload: "also ok"},
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.Equal(t, "ok", results[0].Value)

	assert.False(t, results[1].Success)
	assert.Equal(t, "b", results[1].TaskID)
	assert.ErrorIs(t, results[1].Err, types.ErrTaskExecution)
	assert.ErrorIs(t, results[1].Err, failErr)
	assert.NotEmpty(t, results[1].WorkerID)

	assert.True(t, results[2].Success)
	assert.Equal(t, "also ok", results[2].Value)
}

func TestExecuteBatch_SubmitErrorsRecordedInline(t *testing.T) {
	p := newTestPool(t, func(c *Config) { c.MaxWorkers = 1 })

	gate := make(chan struct{})
	require.NoError(t, p.Registry().Register("block", func(ctx context.Context, payload any) (any, error) {
		<-gate
		return nil, nil
	}))

	first, err := p.Submit(task.Task{ID: "taken", Type: "block"})
	require.NoError(t, err)

	results := p.ExecuteBatch(context.Background(), []task.Task{
		{ID: "taken", Type: "block"},
		{Type: ""},
	})
	close(gate)
	_, err = first.Wait(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.ErrorIs(t, results[0].Err, types.ErrDuplicateTaskID)
	assert.False(t, results[1].Success)
	assert.Error(t, results[1].Err)
}

func TestExecuteBatch_ContextCancellation(t *testing.T) {
	p := newTestPool(t, func(c *Config) { c.MaxWorkers = 1 })

	gate := make(chan struct{})
	defer close(gate)
	require.NoError(t, p.Registry().Register("block", func(ctx context.Context, payload any) (any, error) {
		<-gate
		return nil, nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	results := p.ExecuteBatch(ctx, []task.Task{{Type: "block"}})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}

func TestMap_PreservesOrder(t *testing.T) {
	p := newTestPool(t, func(c *Config) { c.MaxWorkers = 4 })
	require.NoError(t, p.Registry().Register("square", func(ctx context.Context, payload any) (any, error) {
		n := payload.(int)
		return n * n, nil
	}))

	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	out, err := Map[int, int](context.Background(), p, items, "square", func(n int) any { return n }, 3)
	require.NoError(t, err)
	require.Len(t, out, 10)
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
}

func TestMap_ConcurrencyBound(t *testing.T) {
	p := newTestPool(t, func(c *Config) { c.MaxWorkers = 8 })

	var current, peak int64
	require.NoError(t, p.Registry().Register("track", func(ctx context.Context, payload any) (any, error) {
		cur := atomic.AddInt64(&current, 1)
		for {
			prev := atomic.LoadInt64(&peak)
			if cur <= prev || atomic.CompareAndSwapInt64(&peak, prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return payload, nil
	}))

	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	out, err := Map[int, int](context.Background(), p, items, "track", func(n int) any { return n }, 3)
	require.NoError(t, err)
	assert.Len(t, out, 10)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3), "no more than one chunk in flight at a time")
}

func TestMap_AbortsOnFirstFailure(t *testing.T) {
	p := newTestPool(t, nil)

	failErr := errors.New("item rejected")
	require.NoError(t, p.Registry().Register("picky", func(ctx context.Context, payload any) (any, error) {
		if payload.(int) == 3 {
			return nil, failErr
		}
		return payload, nil
	}))

	out, err := Map[int, int](context.Background(), p, []int{1, 2, 3, 4}, "picky", func(n int) any { return n }, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, failErr)
	assert.Nil(t, out)
}

func TestMap_DefaultConcurrency(t *testing.T) {
	p := newTestPool(t, func(c *Config) { c.MaxWorkers = 2 })
	registerEcho(t, p)

	out, err := Map[string, string](context.Background(), p, []string{"a", "b", "c"}, "echo", func(s string) any { return s }, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, out)
}

func TestMap_WrongResultType(t *testing.T) {
	p := newTestPool(t, nil)
	registerEcho(t, p)

	_, err := Map[int, string](context.Background(), p, []int{1}, "echo", func(n int) any { return n }, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected")
}

func TestMap_EmptyInput(t *testing.T) {
	p := newTestPool(t, nil)

	out, err := Map[int, int](context.Background(), p, nil, "anything", func(n int) any { return n }, 2)
	require.NoError(t, err)
	assert.Empty(t, out)
}
