package reactor

import (
	"errors"
	"net"

	"github.com/coregx/reactor/wsframe"
)

var (
	// ErrServerClosed is returned by Server.Serve after Server.Close
	// has shut the accept loop down.
	ErrServerClosed = errors.New("reactor: server closed")

	// errUnsupportedConn indicates an accepted net.Conn does not expose
	// a raw fd via SyscallConn (never expected for a TCP listener on a
	// unix-like GOOS, but checked rather than assumed).
	errUnsupportedConn = errors.New("reactor: connection does not support raw fd access")

	// errBufferCapExceeded closes a connection whose incrementally
	// accumulated request (headers, or a single frame payload) grew
	// past maxBufferCap without completing — most likely a
	// misbehaving or abusive peer rather than a slow one.
	errBufferCapExceeded = errors.New("reactor: buffer capacity exceeded")
)

// maxBufferCap bounds how large a single connection's read buffer may
// grow while accumulating one HTTP header block or WebSocket frame
// payload. It is deliberately generous and independent of
// Config.MaxFramePayload/MaxHeaderBytes, which fail fast with a
// specific cause; this is the backstop against runaway growth from a
// buggy size accounting elsewhere.
const maxBufferCap = 64 << 20 // 64 MiB

// IsProtocolError reports whether err stems from a WebSocket framing
// or handshake violation (RFC 6455 Section 7.4.1 territory) as
// opposed to a transport-level failure. Handlers can use this inside
// OnException to decide whether the peer sent something malformed
// versus the network simply dropping out.
func IsProtocolError(err error) bool {
	switch {
	case errors.Is(err, wsframe.ErrProtocolError),
		errors.Is(err, wsframe.ErrInvalidUTF8),
		errors.Is(err, wsframe.ErrFrameTooLarge),
		errors.Is(err, wsframe.ErrReservedBits),
		errors.Is(err, wsframe.ErrInvalidOpcode),
		errors.Is(err, wsframe.ErrControlFragmented),
		errors.Is(err, wsframe.ErrControlTooLarge),
		errors.Is(err, wsframe.ErrUnexpectedContinuation),
		errors.Is(err, wsframe.ErrNonZeroLengthMSB),
		errors.Is(err, errBufferCapExceeded):
		return true
	default:
		return false
	}
}

// IsTemporaryError reports whether err is a transport-level hiccup a
// caller might reasonably treat as non-fatal to the server as a
// whole, even though the individual connection is still torn down —
// a dropped TCP connection versus, say, a listener that stopped
// accepting entirely.
func IsTemporaryError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
