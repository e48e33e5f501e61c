package reactor

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/coregx/reactor/config"
	"github.com/coregx/reactor/dispatch"
	"github.com/coregx/reactor/wsframe"
)

// newFeedConn returns a conn wired to a real non-blocking socketpair fd
// (feed's ping/pong path writes through c.writer) and a peer fd the
// test can read from.
func newFeedConn(t *testing.T) (c *conn, peer int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})

	c = &conn{
		buf:        make([]byte, 256),
		state:      stateWSHeader,
		dispatcher: dispatch.OnReadThread{},
	}
	c.writer = newWriter(fds[0], noopSelector{}, c)
	return c, fds[1]
}

// TestFeed_MaxReadLoopsBoundsOneDispatch pipelines far more complete
// WebSocket frames in a single chunk than MaxReadLoops allows, and
// checks that feed stops partway through rather than draining the
// whole chunk in one call — the fairness guard that keeps one chatty
// connection from starving every other connection's turn on the
// reactor goroutine.
func TestFeed_MaxReadLoopsBoundsOneDispatch(t *testing.T) {
	c, peer := newFeedConn(t)
	defer unix.Close(peer)

	s := &Server{cfg: config.Config{
		MaxReadLoops:    3,
		MaxHeaderBytes:  8192,
		MaxFramePayload: 1 << 20,
		Charset:         "utf-8",
		WSRoutes:        map[string]config.Route{},
	}}

	mask := [4]byte{0x11, 0x22, 0x33, 0x44}
	var chunk []byte
	const frameCount = 10
	for i := 0; i < frameCount; i++ {
		chunk = append(chunk, wsframe.Encode(wsframe.OpPing, []byte("x"), &mask)...)
	}

	s.feed(c, chunk)

	// Each ping frame takes two step() calls to fully consume (header,
	// then payload), so MaxReadLoops=3 must leave most of the 10
	// pipelined frames unconsumed in the buffer for the next readiness
	// notification to pick up.
	if len(c.unread()) == 0 {
		t.Fatal("feed drained the entire pipelined chunk despite MaxReadLoops=3; fairness bound not enforced")
	}
}

// TestFeed_DrainsFullyUnderBudget is the companion case: well under the
// loop budget, a small pipelined batch is fully consumed in one feed call.
func TestFeed_DrainsFullyUnderBudget(t *testing.T) {
	c, peer := newFeedConn(t)
	defer unix.Close(peer)

	s := &Server{cfg: config.Config{
		MaxReadLoops:    50,
		MaxHeaderBytes:  8192,
		MaxFramePayload: 1 << 20,
		Charset:         "utf-8",
		WSRoutes:        map[string]config.Route{},
	}}

	mask := [4]byte{0xAA, 0xBB, 0xCC, 0xDD}
	chunk := wsframe.Encode(wsframe.OpPing, []byte("x"), &mask)

	s.feed(c, chunk)

	if len(c.unread()) != 0 {
		t.Fatalf("unread = %d, want 0 (single pipelined frame fully consumed)", len(c.unread()))
	}
}
