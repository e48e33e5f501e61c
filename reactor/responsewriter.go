package reactor

import (
	"bytes"
	"fmt"
)

// httpResponseWriter implements httpwire.ResponseWriter over a
// connection's writer. Bodies are buffered in full so Content-Length
// framing can be computed before the status line is sent — this
// server never streams a response body or speaks chunked
// transfer-encoding, matching httpwire's non-goals.
type httpResponseWriter struct {
	c           *conn
	sent        bool
	status      int
	reason      string
	contentType string
	body        bytes.Buffer
}

func (rw *httpResponseWriter) WriteHeader(status int, reason, contentType string) {
	if rw.sent || rw.status != 0 {
		return
	}
	rw.status, rw.reason, rw.contentType = status, reason, contentType
}

func (rw *httpResponseWriter) Write(p []byte) (int, error) {
	if rw.status == 0 {
		rw.status, rw.reason, rw.contentType = 200, "OK", "text/plain; charset=utf-8"
	}
	return rw.body.Write(p)
}

// flush serializes the buffered status, headers, and body onto the
// connection's writer. keepAlive controls the Connection header.
func (rw *httpResponseWriter) flush(keepAlive bool) {
	if rw.sent {
		return
	}
	rw.sent = true

	status, reason, contentType := rw.status, rw.reason, rw.contentType
	if status == 0 {
		status, reason, contentType = 200, "OK", "text/plain; charset=utf-8"
	}
	connHeader := "close"
	if keepAlive {
		connHeader = "keep-alive"
	}

	head := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Type: %s\r\nContent-Length: %d\r\nConnection: %s\r\n\r\n",
		status, reason, contentType, rw.body.Len(), connHeader)

	out := make([]byte, 0, len(head)+rw.body.Len())
	out = append(out, head...)
	out = append(out, rw.body.Bytes()...)
	rw.c.writer.send(out)
}
