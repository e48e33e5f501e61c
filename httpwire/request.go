// Package httpwire implements the subset of HTTP/1.1 the reactor
// needs on ingress: request-line and header parsing from an in-memory
// buffer, an ordered case-insensitive header list, and exact-match
// request routing.
//
// It deliberately does not parse request bodies beyond Content-Length
// framing, does not speak chunked transfer-encoding, and has no notion
// of HTTP/2 — all non-goals of the server this package supports.
package httpwire

import "strings"

// Header is an ordered list of (name, value) pairs, preserving
// duplicate headers and original casing while supporting
// case-insensitive lookup — mirroring how wsframe.Handshake.Header
// expects to be called.
type Header []HeaderField

// HeaderField is a single (name, value) header entry.
type HeaderField struct {
	Name  string
	Value string
}

// Get returns the value of the first header matching name
// case-insensitively, and whether one was found.
func (h Header) Get(name string) (string, bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// GetDefault returns Get's value or def if the header is absent.
func (h Header) GetDefault(name, def string) string {
	if v, ok := h.Get(name); ok {
		return v
	}
	return def
}

// Request is an immutable, fully-parsed HTTP request line, header
// list, and (once any Content-Length body has been read off the wire)
// body. It is produced once per request by the read state machine and
// never mutated afterward.
type Request struct {
	Method   string
	URI      string
	Protocol string
	Header   Header

	// Body holds the request body, read off the wire up to
	// ContentLength bytes. Nil until the read state machine has
	// consumed the full body (always true by the time a handler sees
	// the request).
	Body []byte
}

// Lookup adapts Request to wsframe.HeaderLookup without httpwire
// importing wsframe (avoids a cycle; wsframe.Handshake takes any
// matching func value).
func (r *Request) Lookup(name string) (string, bool) {
	return r.Header.Get(name)
}

// ContentLength returns the parsed Content-Length header, or 0 if
// absent or malformed. Request bodies beyond Content-Length framing
// (chunked transfer-encoding) are out of scope.
func (r *Request) ContentLength() int64 {
	v, ok := r.Header.Get("Content-Length")
	if !ok {
		return 0
	}
	var n int64
	for _, c := range v {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}

// KeepAlive reports whether the connection should remain open after
// this request completes, per HTTP/1.1 default-keep-alive semantics
// with an explicit "Connection: close" override.
func (r *Request) KeepAlive() bool {
	conn, _ := r.Header.Get("Connection")
	if strings.EqualFold(conn, "close") {
		return false
	}
	if r.Protocol == "HTTP/1.0" {
		return strings.EqualFold(conn, "keep-alive")
	}
	return true
}

// IsWebSocketUpgrade reports whether this request carries the headers
// that start a WebSocket upgrade attempt (Upgrade: websocket). Full
// validation, including Connection/Version/Key, is delegated to
// wsframe.Handshake.Validate.
func (r *Request) IsWebSocketUpgrade() bool {
	upgrade, _ := r.Header.Get("Upgrade")
	return strings.EqualFold(strings.TrimSpace(upgrade), "websocket")
}
