package offload

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShutdown_GracefulDrainsQueuedTasks(t *testing.T) {
	p, err := NewPool[int](context.Background(), WithPoolSize(1))
	require.NoError(t, err)

	var ran atomic.Int64
	futures := make([]*Future[int], 0, 5)
	for range 5 {
		f, err := p.Submit(Descriptor[int]{
			Run: func(context.Context) (int, error) {
				time.Sleep(10 * time.Millisecond)
				ran.Add(1)
				return 0, nil
			},
		})
		require.NoError(t, err)
		futures = append(futures, f)
	}

	p.Shutdown(ShutdownGraceful)

	require.Equal(t, int64(5), ran.Load())
	for _, f := range futures {
		out, ok := f.Outcome()
		require.True(t, ok)
		require.Equal(t, StatusCompleted, out.Status)
	}
}

func TestShutdown_ImmediateCancelsQueuedAndRunning(t *testing.T) {
	p, err := NewPool[int](context.Background(), WithPoolSize(1))
	require.NoError(t, err)

	g := newGate()
	running, err := p.Submit(Descriptor[int]{Run: g.fn})
	require.NoError(t, err)
	<-g.running

	queued, err := p.Submit(Descriptor[int]{
		Run: func(context.Context) (int, error) { return 1, nil },
	})
	require.NoError(t, err)

	p.Shutdown(ShutdownImmediate)

	out, ok := running.Outcome()
	require.True(t, ok)
	require.Equal(t, StatusCancelled, out.Status)
	require.ErrorIs(t, out.Err, ErrTaskCancelled)

	out, ok = queued.Outcome()
	require.True(t, ok)
	require.Equal(t, StatusCancelled, out.Status)
}

func TestShutdown_SubmitAfterShutdownFails(t *testing.T) {
	p, err := NewPool[int](context.Background(), WithPoolSize(1))
	require.NoError(t, err)

	p.Shutdown(ShutdownGraceful)
	_, err = p.Submit(Descriptor[int]{
		Run: func(context.Context) (int, error) { return 0, nil },
	})
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestShutdown_IsIdempotent(t *testing.T) {
	p, err := NewPool[int](context.Background(), WithPoolSize(2))
	require.NoError(t, err)

	p.Shutdown(ShutdownGraceful)
	p.Shutdown(ShutdownGraceful)
	p.Shutdown(ShutdownImmediate)

	select {
	case <-p.Done():
	default:
		t.Fatal("pool not stopped")
	}
}

func TestShutdown_ImmediateAbsorbsLateResults(t *testing.T) {
	p, err := NewPool[int](context.Background(), WithPoolSize(1))
	require.NoError(t, err)

	// The task ignores its context on purpose and finishes after shutdown.
	release := make(chan struct{})
	started := make(chan struct{})
	f, err := p.Submit(Descriptor[int]{
		Run: func(context.Context) (int, error) {
			close(started)
			<-release
			return 99, nil
		},
	})
	require.NoError(t, err)
	<-started

	p.Shutdown(ShutdownImmediate)
	out, ok := f.Outcome()
	require.True(t, ok)
	require.Equal(t, StatusCancelled, out.Status)

	// The straggler's result must not overwrite the cancellation.
	close(release)
	time.Sleep(20 * time.Millisecond)
	out, _ = f.Outcome()
	require.Equal(t, StatusCancelled, out.Status)
}

func TestShutdownMode_String(t *testing.T) {
	require.Equal(t, "graceful", ShutdownGraceful.String())
	require.Equal(t, "immediate", ShutdownImmediate.String())
}
