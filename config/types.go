// Package config assembles the server's external-collaborator pieces:
// a path->handler map, buffer-size and read-loop bounds, a default 404
// handler, a request decorator, and a dispatcher factory, merged into
// an immutable Config the reactor consumes once at startup.
//
// The handler-facing interfaces (HTTPHandler, WebSocketHandler,
// WSConn) live here rather than in package reactor so that the
// concrete connection facade (reactor.WSConn) can implement WSConn
// without reactor and config importing each other.
package config

import (
	"time"

	"github.com/coregx/reactor/dispatch"
	"github.com/coregx/reactor/httpwire"
	"github.com/coregx/reactor/wsframe"
)

// SendKind classifies the outcome of a send attempt.
type SendKind int

const (
	// SendSuccess: the payload was written to the socket in full.
	SendSuccess SendKind = iota
	// SendBuffered: some or all of the payload was queued because the
	// socket could not accept it inline (or a queue already existed).
	SendBuffered
	// SendClosed: the connection is already closed.
	SendClosed
	// SendFailed: the inline write hit an I/O error.
	SendFailed
)

func (k SendKind) String() string {
	switch k {
	case SendSuccess:
		return "Success"
	case SendBuffered:
		return "Buffered"
	case SendClosed:
		return "Closed"
	case SendFailed:
		return "FailedOnError"
	default:
		return "Unknown"
	}
}

// SendResult is the outcome of a Writer.Send / WSConn.SendXxx call.
type SendResult struct {
	Kind   SendKind
	Queued int   // bytes now queued in the BufferedWrite, when Kind == SendBuffered
	Cause  error // populated when Kind == SendFailed
}

// Disposable is a handle whose disposal cancels a scheduled task or
// releases a resource exactly once.
type Disposable interface {
	Dispose()
}

// WSConn is the WebSocket connection facade handlers interact with.
// reactor.WSConn is the sole implementation; it is expressed as an
// interface here purely to break the import cycle that would
// otherwise exist between config and reactor.
type WSConn interface {
	SendText(text string) SendResult
	SendBinary(data []byte) SendResult
	SendPing(data []byte) SendResult
	SendPong(data []byte) SendResult

	Close() error
	CloseWithCode(code wsframe.CloseCode, reason string) error

	Schedule(delay time.Duration, task func()) Disposable
	ScheduleAtFixedRate(period time.Duration, task func()) Disposable
	ScheduleWithFixedDelay(delay time.Duration, task func()) Disposable
	Execute(task func())

	Add(d Disposable) Disposable
	Remove(d Disposable)
	Size() int
}

// HTTPHandler handles one fully-parsed HTTP request. d is the
// connection's dispatch.Dispatcher, for handlers that need to hop
// work onto a session fiber rather than run inline.
type HTTPHandler interface {
	Handle(d dispatch.Dispatcher, req *httpwire.Request, w httpwire.ResponseWriter, session any)
}

// HTTPHandlerFunc adapts a plain function to HTTPHandler.
type HTTPHandlerFunc func(d dispatch.Dispatcher, req *httpwire.Request, w httpwire.ResponseWriter, session any)

// Handle calls f.
func (f HTTPHandlerFunc) Handle(d dispatch.Dispatcher, req *httpwire.Request, w httpwire.ResponseWriter, session any) {
	f(d, req, w, session)
}

// WebSocketHandler is the callback surface the reactor drives for a
// WebSocket-upgraded connection. session is whatever the configured
// SessionFactory produced for the connection; OnOpen may return a
// replacement value that is passed to every subsequent callback for
// that connection, without requiring Go generics at the
// handler-registration boundary.
type WebSocketHandler interface {
	OnOpen(conn WSConn, req *httpwire.Request, session any) any
	OnMessage(conn WSConn, state any, text string)
	OnBinaryMessage(conn WSConn, state any, data []byte, size int)
	OnPing(conn WSConn, state any, data []byte, size int, charset string)
	OnPong(conn WSConn, state any, data []byte, size int)
	OnClose(conn WSConn, state any)
	OnError(conn WSConn, state any, message string)
	OnException(conn WSConn, state any, err error)
	OnUnknownException(err any, conn WSConn)
}

// SessionFactory creates the per-connection session state on accept.
// A nil factory means sessions carry a nil state.
type SessionFactory func() any

// Security decides whether a WebSocket upgrade attempt on a given
// request may proceed, via the optional security gate passed to
// HandleWebSocket.
type Security func(req *httpwire.Request) bool

// Route pairs a WebSocketHandler with its optional Security gate.
type Route struct {
	Handler  WebSocketHandler
	Security Security
}
