package offload

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func startTestWorker(t *testing.T) (*worker[int], chan workerEvent[int], context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan workerEvent[int], 1)
	w := newWorker[int](1, events, ctx, nil, zap.NewNop().Sugar())
	return w, events, cancel
}

func awaitEvent(t *testing.T, events <-chan workerEvent[int]) workerEvent[int] {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no worker event")
		return workerEvent[int]{}
	}
}

func mustTask(t *testing.T, desc Descriptor[int]) *task[int] {
	t.Helper()
	tk, err := newTask[int](context.Background(), desc, desc.Payload)
	require.NoError(t, err)
	require.True(t, tk.transition(StatusQueued, StatusRunning))
	return tk
}

func TestWorker_CompletesTask(t *testing.T) {
	w, events, cancel := startTestWorker(t)
	defer cancel()

	w.mailbox <- mustTask(t, Descriptor[int]{
		Run: func(context.Context) (int, error) { return 41, nil },
	})

	ev := awaitEvent(t, events)
	require.Equal(t, eventDone, ev.kind)
	require.Equal(t, StatusCompleted, ev.outcome.Status)
	require.Equal(t, 41, ev.outcome.Value)
	require.Same(t, w, ev.worker)
}

func TestWorker_TaskErrorIsTaggedWithID(t *testing.T) {
	w, events, cancel := startTestWorker(t)
	defer cancel()

	boom := errors.New("boom")
	w.mailbox <- mustTask(t, Descriptor[int]{
		ID:  "failing-task",
		Run: func(context.Context) (int, error) { return 0, boom },
	})

	ev := awaitEvent(t, events)
	require.Equal(t, eventDone, ev.kind)
	require.Equal(t, StatusFailed, ev.outcome.Status)
	require.ErrorIs(t, ev.outcome.Err, boom)

	id, ok := ExtractTaskID(ev.outcome.Err)
	require.True(t, ok)
	require.Equal(t, "failing-task", id)
}

func TestWorker_ContextCancellationYieldsCancelled(t *testing.T) {
	w, events, cancel := startTestWorker(t)
	defer cancel()

	tk := mustTask(t, Descriptor[int]{
		Run: func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	})
	w.mailbox <- tk
	tk.cancel()

	ev := awaitEvent(t, events)
	require.Equal(t, eventDone, ev.kind)
	require.Equal(t, StatusCancelled, ev.outcome.Status)
	require.ErrorIs(t, ev.outcome.Err, ErrTaskCancelled)
}

func TestWorker_TimeoutYieldsFailed(t *testing.T) {
	w, events, cancel := startTestWorker(t)
	defer cancel()

	w.mailbox <- mustTask(t, Descriptor[int]{
		Timeout: 20 * time.Millisecond,
		Run: func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	})

	ev := awaitEvent(t, events)
	require.Equal(t, eventDone, ev.kind)
	require.Equal(t, StatusFailed, ev.outcome.Status)
	require.ErrorIs(t, ev.outcome.Err, context.DeadlineExceeded)
}

// drainedLimiter returns a limiter whose next Wait blocks for a long time.
func drainedLimiter(t *testing.T) *rate.Limiter {
	t.Helper()
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, lim.Allow())
	return lim
}

func TestWorker_LimiterDeadlineYieldsFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan workerEvent[int], 1)
	w := newWorker[int](1, events, ctx, drainedLimiter(t), zap.NewNop().Sugar())

	// The wait cannot fit inside the task deadline: a failure, not a
	// cancellation, consistent with expiry inside the task function.
	w.mailbox <- mustTask(t, Descriptor[int]{
		Timeout: 10 * time.Millisecond,
		Run:     func(context.Context) (int, error) { return 1, nil },
	})

	ev := awaitEvent(t, events)
	require.Equal(t, eventDone, ev.kind)
	require.Equal(t, StatusFailed, ev.outcome.Status)
	require.Error(t, ev.outcome.Err)
	require.NotErrorIs(t, ev.outcome.Err, ErrTaskCancelled)
}

func TestWorker_LimiterCancellationYieldsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan workerEvent[int], 1)
	w := newWorker[int](1, events, ctx, drainedLimiter(t), zap.NewNop().Sugar())

	tk := mustTask(t, Descriptor[int]{
		Run: func(context.Context) (int, error) { return 1, nil },
	})
	w.mailbox <- tk
	tk.cancel()

	ev := awaitEvent(t, events)
	require.Equal(t, eventDone, ev.kind)
	require.Equal(t, StatusCancelled, ev.outcome.Status)
	require.ErrorIs(t, ev.outcome.Err, ErrTaskCancelled)
}

func TestWorker_PanicReportsCrashWithStack(t *testing.T) {
	w, events, cancel := startTestWorker(t)
	defer cancel()

	w.mailbox <- mustTask(t, Descriptor[int]{
		Run: func(context.Context) (int, error) { panic("kaboom") },
	})

	ev := awaitEvent(t, events)
	require.Equal(t, eventCrashed, ev.kind)
	require.ErrorIs(t, ev.crash, ErrWorkerCrash)
	require.Contains(t, ev.crash.Error(), "kaboom")
	require.Contains(t, ev.crash.Error(), "goroutine")
}

func TestWorker_StopsOnMailboxClose(t *testing.T) {
	w, events, cancel := startTestWorker(t)
	defer cancel()

	w.mailbox <- mustTask(t, Descriptor[int]{
		Run: func(context.Context) (int, error) { return 1, nil },
	})
	awaitEvent(t, events)
	close(w.mailbox) // the run loop must exit without panicking
}
