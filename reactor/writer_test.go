package reactor

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/coregx/reactor/config"
)

// noopSelector satisfies the selector interface without touching any
// kernel event-notification facility, for tests that only need a
// writer or a feed loop to run without a real reactor around it.
type noopSelector struct{}

func (noopSelector) add(fd int, token *conn) error               { return nil }
func (noopSelector) writable(fd int, enabled bool) error         { return nil }
func (noopSelector) remove(fd int) error                         { return nil }
func (noopSelector) wait(dst []readyEvent) ([]readyEvent, error) { return dst, nil }
func (noopSelector) close() error                                { return nil }

// trackingSelector records how often and with what value writable was
// called, so a test can assert a writer armed write-readiness exactly
// once per backed-up connection rather than once per Send call.
type trackingSelector struct {
	writableCalls   int
	writableEnabled bool
}

func (s *trackingSelector) add(fd int, token *conn) error { return nil }
func (s *trackingSelector) writable(fd int, enabled bool) error {
	s.writableCalls++
	s.writableEnabled = enabled
	return nil
}
func (s *trackingSelector) remove(fd int) error                         { return nil }
func (s *trackingSelector) wait(dst []readyEvent) ([]readyEvent, error) { return dst, nil }
func (s *trackingSelector) close() error                                { return nil }

// newBackpressurePair returns a non-blocking self fd and a blocking
// peer fd backed by a real socketpair, with small socket buffers so a
// large payload is guaranteed to back up rather than write through in
// one inline call.
func newBackpressurePair(t *testing.T) (self, peer int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	_ = unix.SetsockoptInt(fds[0], unix.SOL_SOCKET, unix.SO_SNDBUF, 1024)
	_ = unix.SetsockoptInt(fds[1], unix.SOL_SOCKET, unix.SO_RCVBUF, 1024)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestWriter_Send_Success(t *testing.T) {
	self, peer := newBackpressurePair(t)
	w := newWriter(self, noopSelector{}, nil)

	res := w.send([]byte("hello"))
	if res.Kind != config.SendSuccess {
		t.Fatalf("Kind = %v, want SendSuccess", res.Kind)
	}

	buf := make([]byte, 16)
	n, err := unix.Read(peer, buf)
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("peer read %q, want %q", buf[:n], "hello")
	}
}

// TestWriter_Send_BuffersOnBackpressure exercises a socket that
// accepts only part of a large payload: Send must report SendBuffered
// with the queued byte count, arm write-readiness exactly once even
// across repeated backed-up sends (at most one BufferedWrite per
// connection), and a subsequent drain must shrink the queue once the
// peer frees buffer space by reading.
func TestWriter_Send_BuffersOnBackpressure(t *testing.T) {
	self, peer := newBackpressurePair(t)
	sel := &trackingSelector{}
	w := newWriter(self, sel, nil)

	payload := make([]byte, 1<<20) // far larger than the shrunk socket buffers
	res := w.send(payload)
	if res.Kind != config.SendBuffered {
		t.Fatalf("Kind = %v, want SendBuffered", res.Kind)
	}
	if res.Queued == 0 {
		t.Fatal("Queued should report the backed-up byte count")
	}
	if !sel.writableEnabled {
		t.Fatal("send should arm write-readiness once the kernel buffer fills")
	}
	if sel.writableCalls != 1 {
		t.Fatalf("writable armed %d times on the first backed-up send, want 1", sel.writableCalls)
	}
	queuedBefore := len(w.queue)
	if queuedBefore == 0 {
		t.Fatal("writer should be holding the residual bytes in its queue")
	}

	// A second send while already backed up must append to the single
	// existing queue, not allocate a second buffered write or re-arm
	// write-readiness again.
	res2 := w.send([]byte("more"))
	if res2.Kind != config.SendBuffered {
		t.Fatalf("Kind = %v, want SendBuffered", res2.Kind)
	}
	if sel.writableCalls != 1 {
		t.Fatalf("writable armed %d times total, want exactly 1 (one BufferedWrite per connection)", sel.writableCalls)
	}
	if len(w.queue) != queuedBefore+len("more") {
		t.Fatalf("queue = %d bytes, want %d (appended, not replaced)", len(w.queue), queuedBefore+len("more"))
	}

	// Free some kernel buffer space so drain's inline write can make
	// progress instead of immediately hitting EAGAIN again.
	readBuf := make([]byte, 4096)
	if _, err := unix.Read(peer, readBuf); err != nil {
		t.Fatalf("peer read: %v", err)
	}

	beforeDrain := len(w.queue)
	w.drain()
	if len(w.queue) >= beforeDrain {
		t.Fatalf("drain did not shrink the queue: before=%d after=%d", beforeDrain, len(w.queue))
	}
}

func TestWriter_Send_ClosedWriterReturnsClosed(t *testing.T) {
	self, _ := newBackpressurePair(t)
	w := newWriter(self, noopSelector{}, nil)
	w.markClosed()

	res := w.send([]byte("x"))
	if res.Kind != config.SendClosed {
		t.Fatalf("Kind = %v, want SendClosed", res.Kind)
	}
}
