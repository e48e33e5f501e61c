package dispatch

import "sync"

// FiberSession creates one sequential executor ("fiber") per session
// and submits every callback to it instead of running inline on the
// reactor goroutine: a single-consumer goroutine draining a FIFO task
// queue, so callbacks for one connection still run in submission order
// without blocking the reactor goroutine.
//
// The reactor copies any caller-owned mutable byte slice before
// submitting a task built from it,
// since the read buffer backing those bytes is reused across reads —
// FiberSession itself does not copy; that responsibility sits with
// the caller assembling the closure.
type FiberSession struct {
	useForHTTP      bool
	useForWebsocket bool
	exec            *fiberExecutor
}

// NewFiberSession creates a FiberSession with its own sequential
// executor, already running. useForHTTP and useForWebsocket mirror
// configuration flags.
func NewFiberSession(useForHTTP, useForWebsocket bool) *FiberSession {
	return &FiberSession{
		useForHTTP:      useForHTTP,
		useForWebsocket: useForWebsocket,
		exec:            newFiberExecutor(),
	}
}

// Dispatch enqueues fn onto the session's executor. Returns
// immediately; fn runs later, in submission order, relative to every
// other fn submitted to this same FiberSession.
func (f *FiberSession) Dispatch(fn func()) { f.exec.submit(fn) }

// UseForHTTP reports the useForHTTP flag this session was created with.
func (f *FiberSession) UseForHTTP() bool { return f.useForHTTP }

// UseForWebSocket reports the useForWebsocket flag this session was created with.
func (f *FiberSession) UseForWebSocket() bool { return f.useForWebsocket }

// Close stops the executor. Per, this drains any pending
// tasks without running them — a task already in flight when Close is
// called is allowed to finish, but nothing queued behind it executes.
// Safe to call more than once.
func (f *FiberSession) Close() { f.exec.close() }

// fiberExecutor is a single-goroutine FIFO task runner backed by an
// unbounded slice queue rather than a fixed-capacity channel, so
// Dispatch never blocks a producer waiting for queue space.
type fiberExecutor struct {
	mu     sync.Mutex
	queue  []func()
	notify chan struct{}
	done   chan struct{}
	closed bool
}

func newFiberExecutor() *fiberExecutor {
	e := &fiberExecutor{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go e.run()
	return e
}

// submit appends fn to the queue and wakes the worker. A closed
// executor silently drops fn, matching the facade's "runIfActive"
// no-op semantics for anything scheduled after close.
func (e *fiberExecutor) submit(fn func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, fn)
	e.mu.Unlock()

	select {
	case e.notify <- struct{}{}:
	default:
	}
}

func (e *fiberExecutor) run() {
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.mu.Unlock()
			select {
			case <-e.notify:
			case <-e.done:
			}
			e.mu.Lock()
		}
		if e.closed {
			e.mu.Unlock()
			return
		}

		fn := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		fn()
	}
}

// close marks the executor closed and discards whatever is still
// queued; the worker goroutine observes e.closed and exits without
// running the discarded tasks. Idempotent.
func (e *fiberExecutor) close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.queue = nil
	e.mu.Unlock()

	close(e.done)
}
