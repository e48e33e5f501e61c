// Package reactor implements a single-goroutine, non-blocking
// HTTP/1.1 and WebSocket server: one reactor goroutine owns a
// platform selector (epoll on Linux, kqueue on Darwin, a portable
// fallback elsewhere) and drives every registered connection's
// incremental read state machine and buffered write path. Handler
// callbacks either run inline on that goroutine or are handed off to
// a per-connection dispatch.Dispatcher, per the Config a Server is
// built with.
package reactor
