package reactor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/coregx/reactor/config"
)

// registeredDisposable is the handle returned by WSConn.Add and the
// Schedule family: disposing it both removes the entry from the
// connection's disposable set and runs the handle's own cleanup
// (cancelling a timer, in the Schedule case) exactly once.
type registeredDisposable struct {
	ws    *WSConn
	id    uint64
	inner config.Disposable
	once  sync.Once
}

func (h *registeredDisposable) Dispose() {
	h.once.Do(func() {
		h.ws.forget(h.id)
		h.inner.Dispose()
	})
}

// timerDisposable backs Schedule/ScheduleAtFixedRate/ScheduleWithFixedDelay.
// runIfActive checks cancelled both before a fired timer dispatches
// its task and again when the dispatched task starts, so a Dispose
// that lands before the task starts keeps it from running.
type timerDisposable struct {
	timer     *time.Timer
	cancelled atomic.Bool
}

func (t *timerDisposable) Dispose() {
	t.cancelled.Store(true)
	t.timer.Stop()
}

// runIfActive dispatches task onto the connection's session executor
// unless the connection has closed or this timer has been disposed,
// mirroring the facade's no-op-after-disposal guarantee.
func (ws *WSConn) runIfActive(td *timerDisposable, task func()) {
	active := func() bool {
		if td.cancelled.Load() {
			return false
		}
		ws.mu.Lock()
		closed := ws.closed
		ws.mu.Unlock()
		return !closed
	}
	if !active() {
		return
	}
	ws.c.dispatcher.Dispatch(func() {
		if active() {
			task()
		}
	})
}
