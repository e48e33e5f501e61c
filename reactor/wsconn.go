package reactor

import (
	"sync"
	"time"

	"github.com/coregx/reactor/config"
	"github.com/coregx/reactor/wsframe"
)

// WSConn is the per-connection WebSocket facade handed to
// config.WebSocketHandler callbacks. It satisfies
// config.WSConn; reactor, not config, owns the implementation to
// avoid the import cycle a direct dependency would create.
type WSConn struct {
	c *conn

	mu          sync.Mutex
	closed      bool
	disposables map[uint64]*registeredDisposable
	nextID      uint64

	closeGate sync.Once
}

func newWSConn(c *conn) *WSConn {
	return &WSConn{c: c, disposables: make(map[uint64]*registeredDisposable)}
}

func (ws *WSConn) send(op wsframe.Opcode, payload []byte) config.SendResult {
	ws.mu.Lock()
	closed := ws.closed
	ws.mu.Unlock()
	if closed {
		return config.SendResult{Kind: config.SendClosed}
	}
	frame := wsframe.Encode(op, payload, nil) // server-role: never masks outbound frames
	return ws.c.writer.send(frame)
}

// SendText sends a single unfragmented text frame.
func (ws *WSConn) SendText(text string) config.SendResult { return ws.send(wsframe.OpText, []byte(text)) }

// SendBinary sends a single unfragmented binary frame.
func (ws *WSConn) SendBinary(data []byte) config.SendResult { return ws.send(wsframe.OpBinary, data) }

// SendPing sends a ping control frame.
func (ws *WSConn) SendPing(data []byte) config.SendResult { return ws.send(wsframe.OpPing, data) }

// SendPong sends an unsolicited pong control frame.
func (ws *WSConn) SendPong(data []byte) config.SendResult { return ws.send(wsframe.OpPong, data) }

// Close closes the connection with CloseNormalClosure and no reason.
func (ws *WSConn) Close() error {
	return ws.CloseWithCode(wsframe.CloseNormalClosure, "")
}

// CloseWithCode sends a close frame carrying code and reason, then
// tears the connection down. Idempotent: only the first call has any
// effect.
func (ws *WSConn) CloseWithCode(code wsframe.CloseCode, reason string) error {
	ws.closeGate.Do(func() {
		ws.markClosed()
		payload := make([]byte, 2+len(reason))
		payload[0] = byte(code >> 8)
		payload[1] = byte(code)
		copy(payload[2:], reason)
		ws.c.writer.send(wsframe.Encode(wsframe.OpClose, payload, nil))
		ws.c.requestClose()
	})
	return nil
}

// onPeerClose is invoked by the read state machine when a close frame
// or EOF arrives from the peer: it marks the facade closed, disposes
// every outstanding disposable, and lets the caller drive
// WebSocketHandler.OnClose. It does not itself send a close frame —
// the state machine already echoed one when required.
func (ws *WSConn) onPeerClose() {
	ws.markClosed()
}

func (ws *WSConn) markClosed() {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return
	}
	ws.closed = true
	snapshot := make([]*registeredDisposable, 0, len(ws.disposables))
	for _, d := range ws.disposables {
		snapshot = append(snapshot, d)
	}
	ws.disposables = make(map[uint64]*registeredDisposable)
	ws.mu.Unlock()

	for _, d := range snapshot {
		d.Dispose()
	}
}

// Add registers d and returns a handle whose Dispose both removes it
// from the connection's disposable set and disposes d. If the
// connection is already closed, d is disposed immediately and the
// returned handle's Dispose is a no-op.
func (ws *WSConn) Add(d config.Disposable) config.Disposable {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		d.Dispose()
		return &registeredDisposable{ws: ws, inner: noopDisposable{}}
	}
	id := ws.nextID
	ws.nextID++
	h := &registeredDisposable{ws: ws, id: id, inner: d}
	ws.disposables[id] = h
	ws.mu.Unlock()
	return h
}

// Remove disposes d if it is a handle previously returned by Add or
// the Schedule family.
func (ws *WSConn) Remove(d config.Disposable) {
	if h, ok := d.(*registeredDisposable); ok {
		h.Dispose()
	}
}

func (ws *WSConn) forget(id uint64) {
	ws.mu.Lock()
	delete(ws.disposables, id)
	ws.mu.Unlock()
}

// Size reports how many disposables are currently registered.
func (ws *WSConn) Size() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.disposables)
}

// Schedule runs task once after delay, on the connection's dispatcher.
func (ws *WSConn) Schedule(delay time.Duration, task func()) config.Disposable {
	td := &timerDisposable{}
	td.timer = time.AfterFunc(delay, func() { ws.runIfActive(td, task) })
	return ws.Add(td)
}

// ScheduleAtFixedRate runs task every period, re-arming immediately
// after each firing regardless of how long the dispatched task takes
// to actually run.
func (ws *WSConn) ScheduleAtFixedRate(period time.Duration, task func()) config.Disposable {
	td := &timerDisposable{}
	var run func()
	run = func() {
		if !td.cancelled.Load() {
			td.timer.Reset(period)
		}
		ws.runIfActive(td, task)
	}
	td.timer = time.AfterFunc(period, run)
	return ws.Add(td)
}

// ScheduleWithFixedDelay runs task, waits delay after it completes,
// then runs it again, for as long as the handle remains undisposed.
func (ws *WSConn) ScheduleWithFixedDelay(delay time.Duration, task func()) config.Disposable {
	td := &timerDisposable{}
	var run func()
	run = func() {
		if td.cancelled.Load() {
			return
		}
		ws.mu.Lock()
		closed := ws.closed
		ws.mu.Unlock()
		if closed {
			return
		}
		ws.c.dispatcher.Dispatch(func() {
			task()
			if !td.cancelled.Load() {
				td.timer.Reset(delay)
			}
		})
	}
	td.timer = time.AfterFunc(delay, run)
	return ws.Add(td)
}

// Execute dispatches task onto the connection's session executor
// immediately, bypassing scheduling.
func (ws *WSConn) Execute(task func()) {
	ws.c.dispatcher.Dispatch(task)
}

type noopDisposable struct{}

func (noopDisposable) Dispose() {}
