//go:build !linux && !darwin

package reactor

import "time"

// pollReadable is a deliberately naive readiness check for the
// portable fallback selector: it never inspects the fd directly
// (there is no cross-platform syscall for that without pulling in a
// GOOS-specific package for every remaining target), and instead rate
// -limits how often watch() asks the connection to attempt a
// non-blocking read. onReadable's EAGAIN handling absorbs
// the resulting false positives cheaply.
func pollReadable(fd int) bool {
	time.Sleep(time.Millisecond)
	return true
}
