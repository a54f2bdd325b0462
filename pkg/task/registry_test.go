package task

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, payload any) (any, error) {
	return payload, nil
}

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name        string
		taskType    string
		handler     HandlerFunc
		expectError bool
	}{
		{
			name:     "valid registration",
			taskType: "resize",
			handler:  noopHandler,
		},
		{
			name:        "empty type should error",
			taskType:    "",
			handler:     noopHandler,
			expectError: true,
		},
		{
			name:        "nil handler should error",
			taskType:    "resize",
			handler:     nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.taskType, tt.handler)
			if tt.expectError {
				assert.Error(t, err)
				assert.Zero(t, r.Len())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, 1, r.Len())
			}
		})
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("hash", noopHandler))
	err := r.Register("hash", noopHandler)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("ok", noopHandler)

	assert.Panics(t, func() {
		r.MustRegister("ok", noopHandler)
	})
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("found", noopHandler))

	handler, ok := r.Lookup("found")
	assert.True(t, ok)
	assert.NotNil(t, handler)

	handler, ok = r.Lookup("missing")
	assert.False(t, ok)
	assert.Nil(t, handler)
}

func TestRegistry_TypesSorted(t *testing.T) {
	r := NewRegistry()
	for _, taskType := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(taskType, noopHandler))
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Types())
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("shared", noopHandler))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, ok := r.Lookup("shared")
				assert.True(t, ok)
				_ = r.Types()
			}
		}()
	}
	wg.Wait()
}
