package offload

// ShutdownMode selects how Shutdown treats work that is still in the pool.
type ShutdownMode int

const (
	// ShutdownGraceful rejects new submissions, lets queued and running
	// tasks finish, then stops the workers.
	ShutdownGraceful ShutdownMode = iota
	// ShutdownImmediate rejects new submissions and resolves every queued
	// and running task as cancelled. Running task functions are signalled
	// through their contexts; a function that ignores its context keeps
	// its goroutine until it returns, but its result is dropped.
	ShutdownImmediate
)

func (m ShutdownMode) String() string {
	if m == ShutdownImmediate {
		return "immediate"
	}
	return "graceful"
}

// Shutdown stops the pool and blocks until the coordinator has exited.
// Subsequent Submit calls return ErrPoolClosed. Calling Shutdown more than
// once is safe; later calls wait for the first to finish.
func (p *Pool[R]) Shutdown(mode ShutdownMode) {
	p.closed.Store(true)
	select {
	case p.shutdownCh <- mode:
	case <-p.done:
	}
	<-p.done
}

// Done is closed once the coordinator has exited.
func (p *Pool[R]) Done() <-chan struct{} { return p.done }

// checkDrained finishes a graceful shutdown once no task holds a queue slot
// and no worker is busy.
func (p *Pool[R]) checkDrained() {
	if !p.draining || p.stopped {
		return
	}
	if p.queued.Load() == 0 && len(p.busy) == 0 {
		p.finish()
	}
}

// finish completes a drained graceful shutdown: idle workers are released
// and the pool context is cancelled.
func (p *Pool[R]) finish() {
	p.stopped = true
	for _, w := range p.idle {
		close(w.mailbox)
	}
	p.idle = nil
	p.cancel()
	p.log.Infow("pool stopped", "mode", ShutdownGraceful.String())
}

// abort tears the pool down without draining. Queued tasks resolve as
// cancelled; running tasks are signalled through their contexts and resolve
// as cancelled immediately, absorbing any late worker results.
func (p *Pool[R]) abort() {
	p.stopped = true

	for {
		tk := p.pending.pop()
		if tk == nil {
			break
		}
		if !tk.transition(StatusQueued, StatusCancelled) {
			continue
		}
		p.releaseSlot()
		tk.cancel()
		tk.releasePayload()
		tk.future.resolve(Outcome[R]{Status: StatusCancelled, Err: ErrTaskCancelled})
		p.met.cancelled.Add(1)
	}

	for w, tk := range p.busy {
		tk.cancel()
		if tk.transition(StatusRunning, StatusCancelled) {
			tk.future.resolve(Outcome[R]{Status: StatusCancelled, Err: ErrTaskCancelled})
			p.met.cancelled.Add(1)
		}
		delete(p.busy, w)
		p.busyCount.Add(-1)
		p.met.inflight.Add(-1)
	}

	for _, w := range p.idle {
		close(w.mailbox)
	}
	p.idle = nil
	p.cancel()
	p.log.Infow("pool stopped", "mode", ShutdownImmediate.String())
}
