package reactor

import (
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/coregx/reactor/config"
	"github.com/coregx/reactor/httpwire"
	"github.com/coregx/reactor/wsframe"
)

// Server is the single-goroutine reactor: one call to Serve owns the
// selector and every registered connection until Close is called or
// the listener errors out.
type Server struct {
	cfg         config.Config
	plainRouter *httpwire.Router

	ln  net.Listener
	sel selector

	nextConnID uint64

	newConnsCh chan net.Conn
	closeReqs  chan closeRequest
	closed     atomic.Bool
	closeOnce  sync.Once
	done       chan struct{}

	wakeR, wakeW int
	wakeConn     *conn
}

type closeRequest struct {
	c   *conn
	err error
}

// New builds a Server from cfg. It does not start listening; call
// Serve for that.
func New(cfg config.Config) *Server {
	return &Server{
		cfg: cfg,
		plainRouter: httpwire.NewRouter(map[string]httpwire.Handler{},
			httpwire.WithDefaultHandler(cfg.DefaultHandler),
			httpwire.WithDecorator(cfg.Decorator)),
		newConnsCh: make(chan net.Conn, 256),
		closeReqs:  make(chan closeRequest, 4096),
		done:       make(chan struct{}),
	}
}

// Serve accepts connections on addr and runs the reactor loop until
// Close is called. It blocks the calling goroutine — that goroutine
// becomes the reactor goroutine for the lifetime of the server.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln

	sel, err := newSelector()
	if err != nil {
		_ = ln.Close()
		return err
	}
	s.sel = sel

	if err := s.setupWake(); err != nil {
		_ = ln.Close()
		_ = sel.close()
		return err
	}

	go s.acceptLoop()

	return s.loop()
}

// setupWake registers a pipe with the selector solely so the reactor
// goroutine's blocking wait can be interrupted whenever another
// goroutine hands it an accepted connection or a failure to process —
// without it, a reactor sitting in EpollWait/Kevent with no I/O
// activity on its existing connections would not notice either until
// some unrelated fd became ready.
func (s *Server) setupWake() error {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return err
	}
	s.wakeR, s.wakeW = fds[0], fds[1]
	if err := unix.SetNonblock(s.wakeR, true); err != nil {
		return err
	}
	if err := unix.SetNonblock(s.wakeW, true); err != nil {
		return err
	}
	s.wakeConn = &conn{fd: s.wakeR, isWake: true}
	return s.sel.add(s.wakeR, s.wakeConn)
}

// wake writes a single byte to the wake pipe, best-effort: EAGAIN just
// means a wake is already pending, which is all that's needed.
func (s *Server) wake() {
	var b [1]byte
	_, _ = unix.Write(s.wakeW, b[:])
}

func (s *Server) drainWake() {
	var buf [64]byte
	for {
		n, err := unix.Read(s.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// acceptLoop runs on its own goroutine (net.Listener.Accept has no
// non-blocking variant worth hand-rolling here) and hands each new
// connection to the reactor goroutine via the same closeReqs-style
// channel handoff used for failures, keeping "only the reactor
// goroutine mutates connection/selector state" true even for accepts.
func (s *Server) acceptLoop() {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.cfg.Logger.Printf("accept: %v", err)
			continue
		}
		select {
		case s.newConnsCh <- nc:
			s.wake()
		case <-s.done:
			_ = nc.Close()
			return
		}
	}
}

// loop is the reactor: it waits for readiness, processes accepts and
// failures queued by other goroutines, and drives each ready
// connection's read or write path. Exactly one goroutine ever runs this.
func (s *Server) loop() error {
	events := make([]readyEvent, 0, 128)
	readBuf := make([]byte, 64*1024) // reused across reads; the reactor goroutine is the only reader

	for {
		select {
		case <-s.done:
			return ErrServerClosed
		case nc := <-s.newConnsCh:
			s.registerConn(nc)
		default:
		}

		s.drainCloseRequests()

		var err error
		events, err = s.sel.wait(events)
		if err != nil {
			if s.closed.Load() {
				return ErrServerClosed
			}
			s.cfg.Logger.Printf("selector wait: %v", err)
			continue
		}

		for _, ev := range events {
			c := ev.conn
			if c.isWake {
				s.drainWake()
				continue
			}
			if ev.writable {
				c.writer.drain()
			}
			if ev.readable {
				s.onReadable(c, readBuf)
			}
		}

		s.drainCloseRequests()
	}
}

func (s *Server) drainCloseRequests() {
	for {
		select {
		case req := <-s.closeReqs:
			s.handleFailure(req.c, req.err)
		default:
			return
		}
	}
}

func (s *Server) registerConn(nc net.Conn) {
	fd, err := fdOf(nc)
	if err != nil {
		s.cfg.Logger.Printf("accept: could not extract fd: %v", err)
		_ = nc.Close()
		return
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		s.cfg.Logger.Printf("accept: set nonblock: %v", err)
		_ = nc.Close()
		return
	}

	id := atomic.AddUint64(&s.nextConnID, 1)
	c := &conn{
		id:     id,
		fd:     fd,
		net:    nc,
		server: s,
		buf:    make([]byte, s.cfg.ReadBufferSize),
		state:  stateRequestLine,
	}
	w := newWriter(fd, s.sel, c)
	w.onFail = func(err error) { s.queueFailure(c, err) }
	c.writer = w

	if s.cfg.NewDispatcher != nil {
		c.dispatcher = s.cfg.NewDispatcher()
	}
	if s.cfg.SessionFactory != nil {
		c.session = s.cfg.SessionFactory()
	}

	if err := s.sel.add(fd, c); err != nil {
		s.cfg.Logger.Printf("accept: selector add: %v", err)
		_ = nc.Close()
		return
	}
}

func (s *Server) onReadable(c *conn, scratch []byte) {
	if c.state == stateClosed {
		return
	}
	n, err := unix.Read(c.fd, scratch)
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		s.handleFailure(c, err)
		return
	}
	if n == 0 {
		if ws := c.ws; ws != nil {
			ws.onPeerClose()
			c.dispatcher.Dispatch(func() {
				route := s.cfg.WSRoutes[c.uri]
				if route.Handler != nil {
					route.Handler.OnClose(ws, c.session)
				}
			})
		}
		s.handleFailure(c, nil) // orderly EOF
		return
	}
	s.feed(c, scratch[:n])
}

// requestCloseAfterWrite schedules c's teardown once the reactor
// finishes whatever it is doing this iteration. Safe to call from the
// reactor goroutine itself (the common case, e.g. after a
// non-keep-alive response or a close handshake).
func (s *Server) requestCloseAfterWrite(c *conn) {
	s.queueFailure(c, nil)
}

// queueFailure is safe to call from any goroutine (the reactor
// goroutine inline, or a fiber executor goroutine after a failed
// Send); it hands the teardown decision back to the reactor goroutine
// rather than mutating conn/selector state from an arbitrary caller.
func (s *Server) queueFailure(c *conn, err error) {
	select {
	case s.closeReqs <- closeRequest{c: c, err: err}:
		s.wake()
	default:
		go func() {
			s.closeReqs <- closeRequest{c: c, err: err}
			s.wake()
		}()
	}
}

func (s *Server) failConn(c *conn, err error) {
	s.queueFailure(c, err)
}

func (s *Server) failWSConn(c *conn, ws *WSConn, code wsframe.CloseCode, err error) {
	ws.CloseWithCode(code, "")
	s.queueFailure(c, err)
}

// handleFailure runs exclusively on the reactor goroutine: it
// notifies the handler of an I/O or protocol error and tears the connection down.
func (s *Server) handleFailure(c *conn, err error) {
	if err != nil && c.ws != nil {
		ws := c.ws
		session := c.session
		c.dispatcher.Dispatch(func() {
			route := s.cfg.WSRoutes[c.uri]
			if route.Handler != nil {
				route.Handler.OnException(ws, session, err)
			}
		})
		ws.markClosed()
	}
	s.closeConn(c)
}

func (s *Server) closeConn(c *conn) {
	c.closeOnce.Do(func() {
		c.state = stateClosed
		_ = s.sel.remove(c.fd)
		c.writer.markClosed()
		if c.dispatcher != nil {
			c.dispatcher.Close()
		}
		_ = c.net.Close()
	})
}

// Close stops the accept loop and the reactor loop. It does not close
// connections that were already accepted, and their pending buffered
// writes are never flushed.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		if s.ln != nil {
			_ = s.ln.Close()
		}
		if s.sel != nil {
			_ = s.sel.close()
		}
		if s.wakeR != 0 {
			_ = unix.Close(s.wakeR)
		}
		if s.wakeW != 0 {
			_ = unix.Close(s.wakeW)
		}
	})
	return nil
}
