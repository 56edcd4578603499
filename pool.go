package offload

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/offloadq/offload/metrics"
)

// Pool owns a fixed set of workers and the pending-task queue. A single
// coordinator goroutine performs all scheduling: it reacts to submissions,
// worker completion messages, cancellation requests and respawn timers as
// they arrive, in arrival order, and never blocks waiting on a worker. The
// pending queue and idle set are therefore mutated by one goroutine only and
// need no locks.
type Pool[R any] struct {
	cfg config

	logBase *zap.SugaredLogger
	log     *zap.SugaredLogger
	met     *poolMetrics
	buffers *BufferPool
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	submitCh   chan *task[R]
	cancelCh   chan *task[R]
	events     chan workerEvent[R]
	respawnCh  chan struct{}
	shutdownCh chan ShutdownMode
	done       chan struct{}

	closed   atomic.Bool
	degraded atomic.Bool

	queued      atomic.Int64 // tasks holding a queue slot (status Queued)
	busyCount   atomic.Int64
	workerCount atomic.Int64

	// coordinator-owned state. Only run() and its helpers touch these.
	pending      pendingQueue[R]
	idle         []*worker[R]
	busy         map[*worker[R]]*task[R]
	nextWorkerID int
	seq          uint64
	crashStreak  int
	respawnWait  *backoff.ExponentialBackOff
	draining     bool
	stopped      bool
}

// NewPool creates a pool with cfg.PoolSize workers (host core count by
// default) and starts its coordinator. Cancelling ctx is equivalent to
// Shutdown(ShutdownImmediate).
func NewPool[R any](ctx context.Context, opts ...Option) (*Pool[R], error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	size := cfg.effectivePoolSize()
	p := &Pool[R]{
		cfg:         cfg,
		logBase:     cfg.logger().Sugar(),
		met:         newPoolMetrics(cfg.metricsProvider()),
		buffers:     cfg.bufferPool(),
		submitCh:    make(chan *task[R]),
		cancelCh:    make(chan *task[R]),
		events:      make(chan workerEvent[R], size),
		respawnCh:   make(chan struct{}, size),
		shutdownCh:  make(chan ShutdownMode),
		done:        make(chan struct{}),
		pending:     newPendingQueue[R](cfg.QueuePolicy),
		busy:        make(map[*worker[R]]*task[R], size),
		respawnWait: newRespawnBackoff(cfg.RestartBackoff),
	}
	p.log = p.logBase.Named("pool")
	p.ctx, p.cancel = context.WithCancel(ctx)
	if cfg.RateLimit > 0 {
		p.limiter = rate.NewLimiter(cfg.RateLimit, cfg.rateBurst())
	}

	for range size {
		p.spawnWorker()
	}
	go p.run()

	p.log.Infow("pool started",
		"workers", size,
		"queuePolicy", cfg.QueuePolicy.String(),
		"queueCapacity", cfg.QueueCapacity,
	)
	return p, nil
}

// Submit enqueues one task and returns its future. The call never waits for
// execution: it either hands the task to the coordinator or fails fast with
// ErrPoolClosed, ErrPoolDegraded, ErrQueueFull, or a descriptor/ownership
// error. Payload handoff (copy or move, per the descriptor's transfer mode
// and the configured threshold) happens only once the task is admitted; a
// rejected submission leaves the caller's payload handle intact so the same
// descriptor can be retried.
func (p *Pool[R]) Submit(desc Descriptor[R]) (*Future[R], error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	if p.degraded.Load() {
		return nil, ErrPoolDegraded
	}
	if err := validateDescriptor(desc); err != nil {
		return nil, err
	}
	if !p.reserveSlot() {
		return nil, ErrQueueFull
	}

	payload, moved, err := p.prepare(desc)
	if err != nil {
		p.releaseSlot()
		return nil, err
	}
	handback := func() {
		if payload == nil {
			return
		}
		if moved {
			desc.Payload.undoMove(payload)
		} else {
			_ = payload.Release()
		}
	}

	tk, err := newTask[R](p.ctx, desc, payload)
	if err != nil {
		p.releaseSlot()
		handback()
		return nil, err
	}
	tk.future.cancelFn = func() { p.requestCancel(tk) }

	select {
	case p.submitCh <- tk:
		p.met.submitted.Add(1)
		return tk.future, nil
	case <-p.ctx.Done():
		p.releaseSlot()
		tk.cancel()
		handback()
		return nil, ErrPoolClosed
	}
}

// prepare performs the payload handoff for buffer tasks and returns the
// worker-owned handle, reporting whether ownership was moved rather than
// copied. Plain tasks pass through with a nil payload.
func (p *Pool[R]) prepare(desc Descriptor[R]) (payload *Buffer, moved bool, err error) {
	if desc.RunBuffer == nil {
		return nil, false, nil
	}

	mode := desc.Transfer
	if mode == TransferAuto {
		if desc.Payload.Len() >= p.cfg.TransferThreshold {
			mode = TransferMove
		} else {
			mode = TransferCopy
		}
	}
	if mode == TransferMove {
		payload, err = desc.Payload.Move()
		return payload, true, err
	}
	payload, err = desc.Payload.Clone()
	return payload, false, err
}

// Buffers returns the pool's payload buffer pool, for allocating payloads
// that will be submitted with move semantics.
func (p *Pool[R]) Buffers() *BufferPool { return p.buffers }

// PoolStats is a point-in-time snapshot of pool occupancy.
type PoolStats struct {
	Workers  int // live workers (busy + idle)
	Busy     int
	Pending  int // tasks awaiting assignment
	Degraded bool
}

// Stats returns current pool occupancy. Safe to call from any goroutine.
func (p *Pool[R]) Stats() PoolStats {
	return PoolStats{
		Workers:  int(p.workerCount.Load()),
		Busy:     int(p.busyCount.Load()),
		Pending:  int(p.queued.Load()),
		Degraded: p.degraded.Load(),
	}
}

// run is the coordinator loop. All pool-side scheduling state is owned here.
func (p *Pool[R]) run() {
	defer close(p.done)
	for {
		select {
		case tk := <-p.submitCh:
			p.admit(tk)
		case tk := <-p.cancelCh:
			p.cancelQueued(tk)
		case ev := <-p.events:
			p.handleEvent(ev)
		case <-p.respawnCh:
			p.respawn()
		case mode := <-p.shutdownCh:
			if mode == ShutdownImmediate {
				p.abort()
				return
			}
			p.draining = true
			p.log.Infow("graceful shutdown, draining",
				"pending", p.queued.Load(), "busy", len(p.busy))
			p.checkDrained()
		case <-p.ctx.Done():
			p.abort()
			return
		}
		if p.stopped {
			return
		}
	}
}

// admit registers an accepted task and assigns it immediately when an idle
// worker is available. Tasks that raced with degradation are failed here.
func (p *Pool[R]) admit(tk *task[R]) {
	if p.degraded.Load() {
		p.failQueued(tk, ErrPoolDegraded)
		return
	}
	p.seq++
	tk.seq = p.seq
	p.pending.push(tk)
	p.dispatch()
}

// dispatch pairs idle workers with pending tasks until one side runs out.
// Entries cancelled while queued fail the Queued->Running transition and are
// skipped; their futures were already resolved by the cancellation path.
func (p *Pool[R]) dispatch() {
	for len(p.idle) > 0 {
		tk := p.pending.pop()
		if tk == nil {
			return
		}
		if !tk.transition(StatusQueued, StatusRunning) {
			continue
		}
		p.releaseSlot()
		n := len(p.idle) - 1
		w := p.idle[n]
		p.idle[n] = nil
		p.idle = p.idle[:n]
		p.assign(w, tk)
	}
}

func (p *Pool[R]) assign(w *worker[R], tk *task[R]) {
	p.busy[w] = tk
	p.busyCount.Add(1)
	p.met.inflight.Add(1)
	w.setState(WorkerBusy)
	// The worker is idle, so its single-slot mailbox is empty.
	w.mailbox <- tk
}

// handleEvent processes one worker completion or crash message. The finishing
// worker is offered the queue head (via dispatch) before new submissions can
// claim it, which keeps pending tasks served in arrival order.
func (p *Pool[R]) handleEvent(ev workerEvent[R]) {
	w, tk := ev.worker, ev.task
	delete(p.busy, w)
	p.busyCount.Add(-1)
	p.met.inflight.Add(-1)
	p.met.duration.Record(ev.duration.Seconds())

	switch ev.kind {
	case eventDone:
		if !p.degraded.Load() {
			p.crashStreak = 0
			p.respawnWait.Reset()
		}
		p.finishTask(tk, ev.outcome)
		w.setState(WorkerIdle)
		p.idle = append(p.idle, w)
		p.dispatch()

	case eventCrashed:
		w.setState(WorkerDead)
		p.workerCount.Add(-1)
		p.met.crashes.Add(1)
		p.log.Errorw("worker crashed", "worker", w.id, "task", tk.id, "error", ev.crash)
		tk.cancel()
		if tk.transition(StatusRunning, StatusFailed) {
			tk.future.resolve(Outcome[R]{Status: StatusFailed, Err: tagTaskError(ev.crash, tk.id)})
			p.met.failed.Add(1)
		}
		p.scheduleRespawn()
	}

	p.checkDrained()
}

// finishTask resolves a task that ran to completion on a worker. The CAS
// fails when a cancellation or shutdown path already resolved the future;
// the late result is then dropped.
func (p *Pool[R]) finishTask(tk *task[R], out Outcome[R]) {
	tk.cancel()
	if !tk.transition(StatusRunning, out.Status) {
		return
	}
	tk.future.resolve(out)
	switch out.Status {
	case StatusCompleted:
		p.met.completed.Add(1)
	case StatusFailed:
		p.met.failed.Add(1)
	case StatusCancelled:
		p.met.cancelled.Add(1)
	}
}

// scheduleRespawn replaces a dead worker. The first crash in a streak
// respawns immediately; consecutive crashes back off exponentially. Beyond
// the restart limit the pool degrades instead of retrying forever.
func (p *Pool[R]) scheduleRespawn() {
	p.crashStreak++
	if p.crashStreak > p.cfg.MaxWorkerRestarts {
		p.enterDegraded()
		return
	}
	if p.crashStreak == 1 {
		p.log.Infow("respawning worker", "workers", p.workerCount.Load())
		p.spawnWorker()
		p.dispatch()
		return
	}

	delay := p.respawnWait.NextBackOff()
	p.log.Warnw("consecutive worker crash, delaying respawn",
		"streak", p.crashStreak, "delay", delay)
	time.AfterFunc(delay, func() {
		select {
		case p.respawnCh <- struct{}{}:
		case <-p.ctx.Done():
		}
	})
}

// respawn handles a fired backoff timer.
func (p *Pool[R]) respawn() {
	if p.degraded.Load() || p.stopped {
		return
	}
	p.log.Infow("respawning worker after backoff", "workers", p.workerCount.Load()+1)
	p.spawnWorker()
	p.dispatch()
}

func (p *Pool[R]) spawnWorker() {
	p.nextWorkerID++
	w := newWorker[R](p.nextWorkerID, p.events, p.ctx, p.limiter, p.logBase)
	w.setState(WorkerIdle)
	p.idle = append(p.idle, w)
	p.workerCount.Add(1)
}

// enterDegraded is terminal: pending tasks fail with ErrPoolDegraded and new
// submissions are rejected until the pool is externally replaced.
func (p *Pool[R]) enterDegraded() {
	p.degraded.Store(true)
	p.log.Errorw("pool degraded, rejecting submissions",
		"maxWorkerRestarts", p.cfg.MaxWorkerRestarts)
	for {
		tk := p.pending.pop()
		if tk == nil {
			return
		}
		p.failQueued(tk, ErrPoolDegraded)
	}
}

// failQueued resolves a still-queued task as failed with cause.
func (p *Pool[R]) failQueued(tk *task[R], cause error) {
	if !tk.transition(StatusQueued, StatusFailed) {
		return
	}
	p.releaseSlot()
	tk.cancel()
	tk.releasePayload()
	tk.future.resolve(Outcome[R]{Status: StatusFailed, Err: tagTaskError(cause, tk.id)})
	p.met.failed.Add(1)
}

// cancelQueued handles a cancellation request for a task that may still be
// queued. Running and finished tasks fail the CAS and are left to the
// context-cancellation path.
func (p *Pool[R]) cancelQueued(tk *task[R]) {
	if tk.transition(StatusQueued, StatusCancelled) {
		p.releaseSlot()
		tk.releasePayload()
		tk.future.resolve(Outcome[R]{Status: StatusCancelled, Err: ErrTaskCancelled})
		p.met.cancelled.Add(1)
	}
	p.checkDrained()
}

// requestCancel is installed as every future's cancel hook.
func (p *Pool[R]) requestCancel(tk *task[R]) {
	tk.cancel()
	select {
	case p.cancelCh <- tk:
	case <-p.done:
	case <-p.ctx.Done():
	}
}

// reserveSlot admits a task into the bounded pending queue. With no capacity
// configured the count is kept for stats only.
func (p *Pool[R]) reserveSlot() bool {
	n := p.queued.Add(1)
	if p.cfg.QueueCapacity > 0 && n > int64(p.cfg.QueueCapacity) {
		p.queued.Add(-1)
		return false
	}
	p.met.queueDepth.Add(1)
	return true
}

func (p *Pool[R]) releaseSlot() {
	p.queued.Add(-1)
	p.met.queueDepth.Add(-1)
}

func newRespawnBackoff(initial time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.RandomizationFactor = 0.1
	b.Multiplier = 2.0
	b.MaxInterval = 5 * time.Second
	b.Reset()
	return b
}

// poolMetrics bundles the pool's instruments.
type poolMetrics struct {
	submitted metrics.Counter
	completed metrics.Counter
	failed    metrics.Counter
	cancelled metrics.Counter
	crashes   metrics.Counter

	queueDepth metrics.UpDownCounter
	inflight   metrics.UpDownCounter

	duration metrics.Histogram
}

func newPoolMetrics(mp metrics.Provider) *poolMetrics {
	return &poolMetrics{
		submitted:  mp.Counter("offload_tasks_submitted"),
		completed:  mp.Counter("offload_tasks_completed"),
		failed:     mp.Counter("offload_tasks_failed"),
		cancelled:  mp.Counter("offload_tasks_cancelled"),
		crashes:    mp.Counter("offload_worker_crashes"),
		queueDepth: mp.UpDownCounter("offload_queue_depth"),
		inflight:   mp.UpDownCounter("offload_tasks_inflight"),
		duration:   mp.Histogram("offload_task_duration_seconds"),
	}
}
