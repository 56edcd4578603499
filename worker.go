package offload

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Worker states, tracked for observability. Transitions: Idle -> Busy -> Idle
// on completion, Busy -> Dead on a crash (terminal; the pool spawns a
// replacement).
const (
	WorkerIdle int32 = iota
	WorkerBusy
	WorkerDead
)

type workerEventKind int

const (
	eventDone workerEventKind = iota
	eventCrashed
)

// workerEvent is the single message type workers send back to the
// coordinator: a terminal outcome for the bound task, or a crash report.
type workerEvent[R any] struct {
	worker   *worker[R]
	task     *task[R]
	kind     workerEventKind
	outcome  Outcome[R]
	crash    error
	duration time.Duration
}

// worker is an isolated execution context. It owns a private mailbox, runs
// one task at a time to completion, and communicates with the pool only
// through events; it never touches the pending queue or the idle set.
type worker[R any] struct {
	id      int
	mailbox chan *task[R]
	events  chan<- workerEvent[R]
	poolCtx context.Context

	limiter *rate.Limiter
	log     *zap.SugaredLogger

	state atomic.Int32
}

func newWorker[R any](
	id int,
	events chan<- workerEvent[R],
	poolCtx context.Context,
	limiter *rate.Limiter,
	log *zap.SugaredLogger,
) *worker[R] {
	w := &worker[R]{
		id:      id,
		mailbox: make(chan *task[R], 1),
		events:  events,
		poolCtx: poolCtx,
		limiter: limiter,
		log:     log.Named("worker").With("worker", id),
	}
	go w.run()
	return w
}

// run is the worker loop: receive a task, execute it, emit exactly one event.
// The loop exits when the mailbox closes, the pool context ends, or the
// executed task panicked (the crash event is still delivered first).
func (w *worker[R]) run() {
	for {
		select {
		case tk, ok := <-w.mailbox:
			if !ok {
				return
			}
			ev := w.execute(tk)
			select {
			case w.events <- ev:
			case <-w.poolCtx.Done():
				return
			}
			if ev.kind == eventCrashed {
				return
			}
		case <-w.poolCtx.Done():
			return
		}
	}
}

// execute runs one task to completion within this worker. A panic is captured
// with its stack and reported as a crash; the worker is considered dead
// afterwards and must not pick up further work.
func (w *worker[R]) execute(tk *task[R]) (ev workerEvent[R]) {
	ev = workerEvent[R]{worker: w, task: tk, kind: eventDone}
	start := time.Now()

	defer func() {
		ev.duration = time.Since(start)
		if rec := recover(); rec != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			ev.kind = eventCrashed
			ev.crash = fmt.Errorf("%w: %v\n%s", ErrWorkerCrash, rec, buf[:n])
		}
	}()

	if w.limiter != nil {
		if err := w.limiter.Wait(tk.ctx); err != nil {
			if errors.Is(tk.ctx.Err(), context.Canceled) {
				ev.outcome = Outcome[R]{Status: StatusCancelled, Err: fmt.Errorf("%w: %w", ErrTaskCancelled, err)}
			} else {
				// Deadline expiry (or a wait that cannot fit the deadline)
				// fails the task, same as expiry inside the task function.
				ev.outcome = Outcome[R]{Status: StatusFailed, Err: tagTaskError(err, tk.id)}
			}
			return ev
		}
	}

	res, err := tk.fn(tk.ctx)
	switch {
	case err == nil:
		ev.outcome = Outcome[R]{Status: StatusCompleted, Value: res}
	case errors.Is(err, context.Canceled):
		ev.outcome = Outcome[R]{Status: StatusCancelled, Err: fmt.Errorf("%w: %w", ErrTaskCancelled, err)}
	default:
		// Includes per-task deadline expiry: a timed-out task failed.
		ev.outcome = Outcome[R]{Status: StatusFailed, Err: tagTaskError(err, tk.id)}
	}
	return ev
}

func (w *worker[R]) setState(s int32) { w.state.Store(s) }

// State returns the worker's current state.
func (w *worker[R]) State() int32 { return w.state.Load() }
