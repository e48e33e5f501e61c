package reactor

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/coregx/reactor/config"
)

// writer is the non-blocking write path shared by the HTTP response
// writer and the WebSocket facade: an inline write is
// attempted first; whatever the kernel won't accept immediately is
// queued and the selector is told to notify on write-readiness, at
// which point drain flushes the queue.
//
// A writer may be called from any goroutine (the reactor goroutine
// driving an inline handler, or a fiber executor goroutine running a
// dispatched handler), so every method takes mu.
type writer struct {
	mu      sync.Mutex
	fd      int
	sel     selector
	c       *conn
	queue   []byte
	closed  bool
	onFail  func(error) // invoked with mu released; wired to the connection's exception path
}

func newWriter(fd int, sel selector, c *conn) *writer {
	return &writer{fd: fd, sel: sel, c: c}
}

// send attempts an inline, non-blocking write of payload. Whatever
// isn't accepted by the kernel is appended to the pending queue and
// the selector is armed for write-readiness.
func (w *writer) send(payload []byte) config.SendResult {
	w.mu.Lock()

	if w.closed {
		w.mu.Unlock()
		return config.SendResult{Kind: config.SendClosed}
	}

	if len(w.queue) > 0 {
		w.queue = append(w.queue, payload...)
		queued := len(w.queue)
		w.mu.Unlock()
		return config.SendResult{Kind: config.SendBuffered, Queued: queued}
	}

	n, err := w.writeInline(payload)
	if err != nil {
		w.mu.Unlock()
		w.fail(err)
		return config.SendResult{Kind: config.SendFailed, Cause: err}
	}
	if n == len(payload) {
		w.mu.Unlock()
		return config.SendResult{Kind: config.SendSuccess}
	}

	residual := append([]byte(nil), payload[n:]...)
	w.queue = residual
	queued := len(residual)
	w.mu.Unlock()

	if err := w.sel.writable(w.fd, true); err != nil {
		w.fail(err)
		return config.SendResult{Kind: config.SendFailed, Cause: err}
	}
	return config.SendResult{Kind: config.SendBuffered, Queued: queued}
}

// drain is called by the reactor goroutine when the selector reports
// the fd is writable. It flushes as much of the pending queue as the
// kernel will accept and disarms write-readiness once empty.
func (w *writer) drain() {
	w.mu.Lock()
	if w.closed || len(w.queue) == 0 {
		w.mu.Unlock()
		return
	}
	n, err := w.writeInline(w.queue)
	if err != nil {
		w.mu.Unlock()
		w.fail(err)
		return
	}
	w.queue = w.queue[n:]
	empty := len(w.queue) == 0
	if empty {
		w.queue = nil
	}
	w.mu.Unlock()

	if empty {
		_ = w.sel.writable(w.fd, false)
	}
}

// writeInline issues non-blocking writes until the kernel buffer is
// full (EAGAIN) or the payload is exhausted. Must be called with mu held.
func (w *writer) writeInline(payload []byte) (int, error) {
	written := 0
	for written < len(payload) {
		n, err := unix.Write(w.fd, payload[written:])
		if n > 0 {
			written += n
		}
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			return written, err
		}
		if n == 0 {
			break
		}
	}
	return written, nil
}

// fail marks the writer closed and notifies the owning connection so
// the reactor can tear it down and surface the error to the handler
// via onException, rather than dropping it silently.
func (w *writer) fail(err error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.queue = nil
	w.mu.Unlock()

	if w.onFail != nil {
		w.onFail(err)
	}
}

// markClosed marks the writer closed without going through the
// failure-notification path, for the orderly local-close case.
func (w *writer) markClosed() {
	w.mu.Lock()
	w.closed = true
	w.queue = nil
	w.mu.Unlock()
}
