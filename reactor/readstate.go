package reactor

import (
	"unicode/utf8"

	"github.com/coregx/reactor/httpwire"
	"github.com/coregx/reactor/wsframe"
)

// feed appends newly-read bytes to c's buffer and drives the parse
// loop, bounded by Config.MaxReadLoops so one connection pumping a
// pipeline of tiny requests (or an attacker sending one byte at a
// time) cannot starve every other connection's turn on the reactor
// goroutine.
func (s *Server) feed(c *conn, chunk []byte) {
	if err := c.append(chunk); err != nil {
		s.failConn(c, err)
		return
	}

	loops := 0
	for loops < s.cfg.MaxReadLoops {
		loops++
		progressed, err := s.step(c)
		if err != nil {
			s.failConn(c, err)
			return
		}
		if c.state == stateClosed {
			return
		}
		if !progressed {
			break
		}
	}
	c.compact()
}

// step attempts to parse and act on exactly one complete unit (a
// request line, a header block, a frame header, or a frame payload)
// from c's unconsumed bytes. progressed is false when the buffer
// doesn't yet hold a complete unit — the caller should stop looping
// and wait for more bytes from the socket.
func (s *Server) step(c *conn) (progressed bool, err error) {
	switch c.state {
	case stateRequestLine:
		method, uri, proto, n, err := httpwire.ParseRequestLine(c.unread())
		if err != nil {
			return false, err
		}
		if n == 0 {
			if len(c.unread()) > s.cfg.MaxHeaderBytes {
				return false, httpwire.ErrHeadersTooLarge
			}
			return false, nil
		}
		c.method, c.uri, c.proto = method, uri, proto
		c.r += n
		c.state = stateHeaders
		return true, nil

	case stateHeaders:
		hdr, n, err := httpwire.ParseHeaders(c.unread())
		if err != nil {
			return false, err
		}
		if n == 0 {
			if len(c.unread()) > s.cfg.MaxHeaderBytes {
				return false, httpwire.ErrHeadersTooLarge
			}
			return false, nil
		}
		c.r += n
		req := &httpwire.Request{Method: c.method, URI: c.uri, Protocol: c.proto, Header: hdr}
		c.req = req

		if req.IsWebSocketUpgrade() {
			s.handleUpgrade(c, req)
			return true, nil
		}

		keepAlive := req.KeepAlive()
		if n := req.ContentLength(); n > 0 {
			c.bodyRemaining = int(n)
			c.bodyKeepAlive = keepAlive
			c.state = stateHTTPBody
			return true, nil
		}

		req.Body = nil
		s.dispatchHTTP(c, req, keepAlive)
		if !keepAlive {
			c.state = stateClosed
			s.requestCloseAfterWrite(c)
		} else {
			c.resetForNextRequest()
		}
		return true, nil

	case stateHTTPBody:
		avail := c.unread()
		if len(avail) < c.bodyRemaining {
			return false, nil
		}
		body := append([]byte(nil), avail[:c.bodyRemaining]...)
		c.r += c.bodyRemaining
		c.bodyRemaining = 0
		c.req.Body = body
		req, keepAlive := c.req, c.bodyKeepAlive

		s.dispatchHTTP(c, req, keepAlive)
		if !keepAlive {
			c.state = stateClosed
			s.requestCloseAfterWrite(c)
		} else {
			c.resetForNextRequest()
		}
		return true, nil

	case stateWSHeader:
		hdr, n, err := wsframe.DecodeHeader(c.unread(), s.cfg.MaxFramePayload)
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
		c.r += n
		c.wsHeader = hdr
		if hdr.Length == 0 {
			s.completeWSFrame(c, nil)
			return true, nil
		}
		c.state = stateWSPayload
		return true, nil

	case stateWSPayload:
		need := int(c.wsHeader.Length)
		avail := c.unread()
		if len(avail) < need {
			return false, nil
		}
		payload := append([]byte(nil), avail[:need]...)
		c.r += need
		if c.wsHeader.Masked {
			wsframe.ApplyMask(payload, c.wsHeader.Mask)
		}
		c.state = stateWSHeader
		s.completeWSFrame(c, payload)
		return true, nil

	case stateClosed:
		return false, nil
	}
	return false, nil
}

// handleUpgrade validates and completes (or rejects) a WebSocket
// handshake attempt for c.
func (s *Server) handleUpgrade(c *conn, req *httpwire.Request) {
	route, ok := s.cfg.WSRoutes[req.URI]
	if !ok {
		s.writeSimpleResponse(c, 404, "Not Found", false)
		c.state = stateClosed
		s.requestCloseAfterWrite(c)
		return
	}

	hs := wsframe.Handshake{Method: req.Method, Header: req.Lookup}
	key, err := hs.Validate()
	if err != nil {
		s.writeSimpleResponse(c, 400, "Bad Request", false)
		c.state = stateClosed
		s.requestCloseAfterWrite(c)
		return
	}

	if s.cfg.CheckOrigin != nil {
		origin, _ := req.Header.Get("Origin")
		if !s.cfg.CheckOrigin(origin) {
			s.writeSimpleResponse(c, 403, "Forbidden", false)
			c.state = stateClosed
			s.requestCloseAfterWrite(c)
			return
		}
	}

	if route.Security != nil && !route.Security(req) {
		s.writeSimpleResponse(c, 403, "Forbidden", false)
		c.state = stateClosed
		s.requestCloseAfterWrite(c)
		return
	}

	accept := wsframe.AcceptKey(key)
	resp := "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Accept: " + accept + "\r\n\r\n"
	c.writer.send([]byte(resp))
	c.state = stateWSHeader

	ws := newWSConn(c)
	c.ws = ws
	c.dispatcher.Dispatch(func() {
		newState := route.Handler.OnOpen(ws, req, c.session)
		c.session = newState
	})
}

// writeSimpleResponse writes a bodyless status-line response directly,
// bypassing httpResponseWriter (used for handshake rejections, which
// have no handler-authored body).
func (s *Server) writeSimpleResponse(c *conn, status int, reason string, keepAlive bool) {
	connHeader := "close"
	if keepAlive {
		connHeader = "keep-alive"
	}
	resp := "HTTP/1.1 " + itoa(status) + " " + reason + "\r\nContent-Length: 0\r\nConnection: " + connHeader + "\r\n\r\n"
	c.writer.send([]byte(resp))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// dispatchHTTP routes req to a registered config.HTTPHandler, or the
// default handler via the fallback plain router, either one wrapped by
// the configured Decorator and always run on c's dispatcher.
func (s *Server) dispatchHTTP(c *conn, req *httpwire.Request, keepAlive bool) {
	if h, ok := s.cfg.HTTPRoutes[req.URI]; ok {
		rw := &httpResponseWriter{c: c}
		handler := httpwire.Handler(func(req *httpwire.Request, w httpwire.ResponseWriter) {
			h.Handle(c.dispatcher, req, w, c.session)
		})
		if s.cfg.Decorator != nil {
			handler = s.cfg.Decorator(handler)
		}
		c.dispatcher.Dispatch(func() {
			handler(req, rw)
			rw.flush(keepAlive)
		})
		return
	}

	rw := &httpResponseWriter{c: c}
	c.dispatcher.Dispatch(func() {
		s.plainRouter.Handle(req, rw)
		rw.flush(keepAlive)
	})
}

// completeWSFrame acts on a fully-decoded frame (header + payload)
// according to its opcode.
func (s *Server) completeWSFrame(c *conn, payload []byte) {
	hdr := c.wsHeader
	ws := c.ws

	switch hdr.Opcode {
	case wsframe.OpPing:
		c.writer.send(wsframe.Encode(wsframe.OpPong, payload, nil))
		size := len(payload)
		c.dispatcher.Dispatch(func() {
			route := s.cfg.WSRoutes[c.uri]
			if route.Handler != nil {
				route.Handler.OnPing(ws, c.session, payload, size, s.cfg.Charset)
			}
		})

	case wsframe.OpPong:
		size := len(payload)
		c.dispatcher.Dispatch(func() {
			route := s.cfg.WSRoutes[c.uri]
			if route.Handler != nil {
				route.Handler.OnPong(ws, c.session, payload, size)
			}
		})

	case wsframe.OpClose:
		c.writer.send(wsframe.Encode(wsframe.OpClose, payload, nil))
		c.state = stateClosed
		ws.onPeerClose()
		c.dispatcher.Dispatch(func() {
			route := s.cfg.WSRoutes[c.uri]
			if route.Handler != nil {
				route.Handler.OnClose(ws, c.session)
			}
		})
		s.requestCloseAfterWrite(c)

	case wsframe.OpText, wsframe.OpBinary:
		if hdr.Fin {
			s.deliverMessage(c, ws, hdr.Opcode, payload)
			return
		}
		c.inFragment = true
		c.fragType = hdr.Opcode
		c.fragBuf = append(c.fragBuf[:0], payload...)

	case wsframe.OpContinuation:
		if !c.inFragment {
			s.failConn(c, wsframe.ErrUnexpectedContinuation)
			return
		}
		c.fragBuf = append(c.fragBuf, payload...)
		if hdr.Fin {
			c.inFragment = false
			msg := append([]byte(nil), c.fragBuf...)
			s.deliverMessage(c, ws, c.fragType, msg)
		}
	}
}

// deliverMessage dispatches one complete (possibly reassembled) data
// message to the handler, validating UTF-8 for text messages per RFC
// 6455 Section 8.1 before delivery.
func (s *Server) deliverMessage(c *conn, ws *WSConn, opcode wsframe.Opcode, payload []byte) {
	if opcode == wsframe.OpText && !utf8.Valid(payload) {
		s.failWSConn(c, ws, wsframe.CloseInvalidFramePayloadData, wsframe.ErrInvalidUTF8)
		return
	}
	size := len(payload)
	c.dispatcher.Dispatch(func() {
		route := s.cfg.WSRoutes[c.uri]
		if route.Handler == nil {
			return
		}
		if opcode == wsframe.OpText {
			route.Handler.OnMessage(ws, c.session, string(payload))
		} else {
			route.Handler.OnBinaryMessage(ws, c.session, payload, size)
		}
	})
}
