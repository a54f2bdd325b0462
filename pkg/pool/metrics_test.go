package pool

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filetools/taskpool/internal/testutils"
	"github.com/filetools/taskpool/pkg/task"
	"github.com/filetools/taskpool/pkg/types"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		require.Len(t, mf.GetMetric(), 1)
		m := mf.GetMetric()[0]
		if m.GetCounter() != nil {
			return m.GetCounter().GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestCollector_TaskCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := newTestPool(t, func(c *Config) {
		c.EnableMetrics = true
		c.MetricsInterval = 10 * time.Millisecond
		c.MetricsRegisterer = reg
	})
	registerEcho(t, p)

	require.NoError(t, p.Registry().Register("fail", func(ctx context.Context, payload any) (any, error) {
		return nil, errors.New("nope")
	}))

	for i := 0; i < 3; i++ {
		fut, err := p.Submit(task.Task{Type: "echo", Payload: i})
		require.NoError(t, err)
		_, err = fut.Wait(context.Background())
		require.NoError(t, err)
	}
	fut, err := p.Submit(task.Task{Type: "fail"})
	require.NoError(t, err)
	_, err = fut.Wait(context.Background())
	require.Error(t, err)

	assert.Equal(t, float64(3), counterValue(t, reg, "taskpool_tasks_completed_total"))
	assert.Equal(t, float64(1), counterValue(t, reg, "taskpool_tasks_failed_total"))
	assert.Zero(t, counterValue(t, reg, "taskpool_tasks_expired_total"))
}

func TestCollector_TimeoutCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := newTestPool(t, func(c *Config) {
		c.EnableMetrics = true
		c.MetricsInterval = 10 * time.Millisecond
		c.MetricsRegisterer = reg
	})

	require.NoError(t, p.Registry().Register("cooperative", func(ctx context.Context, payload any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	fut, err := p.Submit(task.Task{Type: "cooperative", Timeout: 30 * time.Millisecond})
	require.NoError(t, err)
	_, err = fut.Wait(context.Background())
	require.Error(t, err)

	assert.Equal(t, float64(1), counterValue(t, reg, "taskpool_tasks_expired_total"))
}

func TestCollector_GaugeSampling(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := newTestPool(t, func(c *Config) {
		c.EnableMetrics = true
		c.MetricsInterval = 10 * time.Millisecond
		c.MetricsRegisterer = reg
	})
	registerEcho(t, p)

	fut, err := p.Submit(task.Task{Type: "echo", Payload: 1})
	require.NoError(t, err)
	_, err = fut.Wait(context.Background())
	require.NoError(t, err)

	// the sampler runs on its own ticker; give it a cycle or two
	assert.Eventually(t, func() bool {
		return counterValue(t, reg, "taskpool_workers_total") == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCollector_HistogramObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := newTestPool(t, func(c *Config) {
		c.EnableMetrics = true
		c.MetricsInterval = 10 * time.Millisecond
		c.MetricsRegisterer = reg
	})
	registerEcho(t, p)

	for i := 0; i < 5; i++ {
		fut, err := p.Submit(task.Task{Type: "echo", Payload: i})
		require.NoError(t, err)
		_, err = fut.Wait(context.Background())
		require.NoError(t, err)
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "taskpool_task_duration_seconds" {
			require.Len(t, mf.GetMetric(), 1)
			hist = mf.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, hist, "duration histogram must be registered")
	assert.Equal(t, uint64(5), hist.GetSampleCount())
}

// samplerRunning reports whether any collector sampler goroutine is alive
func samplerRunning() bool {
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	return strings.Contains(string(buf[:n]), "(*collector).run")
}

func TestCollector_StopsOnContextShutdown(t *testing.T) {
	var mu sync.Mutex
	var kinds []EventKind

	cfg := DefaultConfig()
	cfg.MaxWorkers = 2
	cfg.EnableMetrics = true
	cfg.MetricsInterval = 5 * time.Millisecond
	cfg.MetricsRegisterer = prometheus.NewRegistry()
	cfg.Logger = testutils.QuietLogger()
	cfg.OnEvent = func(ev Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	}

	p, err := New(cfg, task.NewRegistry())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	require.Eventually(t, samplerRunning, 2*time.Second, 5*time.Millisecond)

	// shut down via the Start context alone; Shutdown is never called
	cancel()
	assert.Eventually(t, func() bool {
		_, err := p.Submit(task.Task{Type: "noop"})
		return errors.Is(err, types.ErrPoolShuttingDown)
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return !samplerRunning()
	}, 2*time.Second, 10*time.Millisecond, "sampler goroutine must exit with the coordinator")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, k := range kinds {
			if k == EventShutdownCompleted {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "completion event must fire without an explicit Shutdown call")
}

func TestPool_QueueLength(t *testing.T) {
	p := newTestPool(t, func(c *Config) { c.MaxWorkers = 1 })

	gate := make(chan struct{})
	require.NoError(t, p.Registry().Register("block", func(ctx context.Context, payload any) (any, error) {
		<-gate
		return nil, nil
	}))

	futures := make([]*Future, 0, 3)
	for i := 0; i < 3; i++ {
		fut, err := p.Submit(task.Task{Type: "block"})
		require.NoError(t, err)
		futures = append(futures, fut)
	}

	assert.Eventually(t, func() bool {
		return p.QueueLength() == 2
	}, 2*time.Second, 10*time.Millisecond)

	close(gate)
	for _, fut := range futures {
		_, err := fut.Wait(context.Background())
		require.NoError(t, err)
	}
	assert.Zero(t, p.QueueLength())
}

func TestStats_ZeroBeforeStart(t *testing.T) {
	p, err := New(nil, task.NewRegistry())
	require.NoError(t, err)

	assert.Zero(t, p.Stats())
	assert.Nil(t, p.Workers())
}
