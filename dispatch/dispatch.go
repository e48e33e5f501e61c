// Package dispatch decides where handler callbacks run, and manages
// the session-scoped resources that back that choice.
package dispatch

// Dispatcher decides where a callback runs: synchronously on the
// reactor goroutine (OnReadThread) or on a dedicated per-session
// sequential executor (FiberSession). Exactly one Dispatcher instance
// is owned per connection.
type Dispatcher interface {
	// Dispatch runs fn according to the dispatcher's policy. Callers on
	// the reactor goroutine must not block waiting for fn to finish
	// when the dispatcher is fiber-backed — Dispatch returns as soon as
	// fn is scheduled, not once it has run.
	Dispatch(fn func())

	// UseForHTTP reports the dispatcher's HTTP flag. The reactor in
	// this module does not consult it: HTTP handler callbacks always go
	// through Dispatch.
	UseForHTTP() bool

	// UseForWebSocket reports the dispatcher's WebSocket flag. The
	// reactor in this module does not consult it: WebSocket handler
	// callbacks always go through Dispatch.
	UseForWebSocket() bool

	// Close disposes any owned resources (a fiber executor's worker
	// goroutine). Idempotent: safe to call more than once.
	Close()
}

// OnReadThread runs every callback synchronously, inline on the
// caller's goroutine. Callbacks the reactor dispatches run on the
// reactor goroutine; tasks from reactor.WSConn's Schedule family run
// on a timer goroutine, and Execute runs on whichever goroutine calls
// it. It owns no resources: Close is a no-op.
//
// Constraint: handlers dispatched this way must be
// non-blocking and fast, since they occupy the reactor goroutine that
// every other connection's I/O depends on.
type OnReadThread struct{}

// Dispatch runs fn immediately and returns once it completes.
func (OnReadThread) Dispatch(fn func()) { fn() }

// UseForHTTP always returns true: OnReadThread has no per-path opt-out.
func (OnReadThread) UseForHTTP() bool { return true }

// UseForWebSocket always returns true: OnReadThread has no per-path opt-out.
func (OnReadThread) UseForWebSocket() bool { return true }

// Close is a no-op: OnReadThread owns no resources.
func (OnReadThread) Close() {}
