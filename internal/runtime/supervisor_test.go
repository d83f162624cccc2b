package runtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSupervisor_StopOnContextCancel(t *testing.T) {
	var ticksA, ticksB int64
	sv := New([]Worker{
		{Name: "a", Period: 50 * time.Millisecond, Update: func(ctx context.Context) error {
			atomic.AddInt64(&ticksA, 1)
			return nil
		}},
		{Name: "b", Period: 50 * time.Millisecond, Update: func(ctx context.Context) error {
			atomic.AddInt64(&ticksB, 1)
			return nil
		}},
	})
	sv.StaggerBase, sv.StaggerJitter = 0, 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sv.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop within bound")
	}

	require.Greater(t, atomic.LoadInt64(&ticksA), int64(0))
	require.Greater(t, atomic.LoadInt64(&ticksB), int64(0))
}

func TestSupervisor_FatalErrorStopsAllWorkers(t *testing.T) {
	var ticksB int64
	sv := New([]Worker{
		{Name: "a", Period: 10 * time.Millisecond, Update: func(ctx context.Context) error {
			return &FatalError{Err: context.DeadlineExceeded}
		}},
		{Name: "b", Period: 10 * time.Millisecond, Update: func(ctx context.Context) error {
			atomic.AddInt64(&ticksB, 1)
			return nil
		}},
	})
	sv.StaggerBase, sv.StaggerJitter = 0, 0

	done := make(chan error, 1)
	go func() { done <- sv.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop within bound")
	}
}
