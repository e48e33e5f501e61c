package reactor

// selector is the reactor's kernel I/O-notification facility. It is
// implemented per-OS (selector_linux.go via epoll, selector_darwin.go
// via kqueue, selector_other.go as a portable fallback) but exposes
// one tiny, OS-agnostic surface to server.go, wrapping
// golang.org/x/sys/unix's EpollEvent/Kevent_t behind a single event
// loop shape that manages many registered connections at once.
//
// Invariant: the selector is mutated only by the reactor goroutine.
// No other goroutine may add, modify, or remove a registration.
type selector interface {
	// add registers fd for readability notifications, associated with
	// the opaque token (a *conn) returned later in readyEvent.
	add(fd int, token *conn) error

	// writable toggles whether fd is also watched for write-readiness.
	// Called when a buffered write is created (enable) or drained
	// (disable).
	writable(fd int, enabled bool) error

	// remove deregisters fd. Safe to call on an fd that was never
	// added or was already removed.
	remove(fd int) error

	// wait blocks until at least one registered fd is ready, or the
	// selector is closed, and appends ready events to dst[:0],
	// returning the slice it filled.
	wait(dst []readyEvent) ([]readyEvent, error)

	// close releases the underlying kernel resource (epoll/kqueue fd).
	close() error
}

// readyEvent reports one fd's readiness, as returned by selector.wait.
type readyEvent struct {
	conn     *conn
	readable bool
	writable bool
}
