package reactor

import (
	"net"
	"sync"

	"github.com/coregx/reactor/dispatch"
	"github.com/coregx/reactor/httpwire"
	"github.com/coregx/reactor/wsframe"
)

// readState is the per-connection incremental parse state.
type readState int

const (
	stateRequestLine readState = iota
	stateHeaders
	stateHTTPBody
	stateWSHeader
	stateWSPayload
	stateClosed
)

// conn is the reactor-owned, single-goroutine-mutated state for one
// accepted socket. Every field below is touched exclusively by the
// reactor goroutine except where a comment says otherwise; fields
// reachable from arbitrary handler goroutines (writer, the
// dispatcher, the WSConn facade's disposables) own their own locks.
type conn struct {
	id     uint64
	fd     int
	net    net.Conn // retained for RemoteAddr and the final Close of the fd
	isWake bool     // true only for the internal wake-pipe pseudo-connection

	server *Server

	buf []byte // growable read buffer
	r   int    // next unconsumed byte
	w   int    // next free byte

	state       readState
	method, uri string
	proto       string

	bodyRemaining int  // bytes of req's body still unread, valid in stateHTTPBody
	bodyKeepAlive bool // keep-alive decision latched when entering stateHTTPBody

	wsHeader   wsframe.Header
	inFragment bool
	fragType   wsframe.Opcode
	fragBuf    []byte

	req *httpwire.Request

	writer     *writer
	dispatcher dispatch.Dispatcher
	session    any
	ws         *WSConn // non-nil once the connection has upgraded

	closeOnce sync.Once
}

// unread returns the slice of buffered bytes not yet consumed by the
// parser.
func (c *conn) unread() []byte {
	return c.buf[c.r:c.w]
}

// resetForNextRequest rewinds the parser to expect a new request line
// after a keep-alive response, without discarding unread pipelined
// bytes already in the buffer.
func (c *conn) resetForNextRequest() {
	c.method, c.uri, c.proto = "", "", ""
	c.req = nil
	c.bodyRemaining = 0
	c.bodyKeepAlive = false
	c.state = stateRequestLine
}

// append grows the buffer as needed (compacting first) and copies p
// onto the end of the unconsumed region.
func (c *conn) append(p []byte) error {
	needed := c.w - c.r + len(p)
	if c.r > 0 {
		copy(c.buf, c.buf[c.r:c.w])
		c.w -= c.r
		c.r = 0
	}
	if needed > len(c.buf) {
		if needed > maxBufferCap {
			return errBufferCapExceeded
		}
		newCap := len(c.buf)
		if newCap == 0 {
			newCap = c.server.cfg.ReadBufferSize
		}
		for newCap < needed {
			newCap *= 2
		}
		if newCap > maxBufferCap {
			newCap = maxBufferCap
		}
		nb := make([]byte, newCap)
		copy(nb, c.buf[:c.w])
		c.buf = nb
	}
	copy(c.buf[c.w:], p)
	c.w += len(p)
	return nil
}

// requestClose asks the reactor goroutine to tear this connection down
// once it next gets a turn. Safe to call from any goroutine.
func (c *conn) requestClose() {
	c.server.requestCloseAfterWrite(c)
}

// compact moves the unread bytes to the start of the buffer whenever
// some bytes have been consumed, and resets both cursors when nothing
// is left unread. The buffer's capacity is never reduced.
func (c *conn) compact() {
	if c.r == 0 {
		return
	}
	if c.r == c.w {
		c.r, c.w = 0, 0
		return
	}
	copy(c.buf, c.buf[c.r:c.w])
	c.w -= c.r
	c.r = 0
}
