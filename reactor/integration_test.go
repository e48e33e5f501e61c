package reactor_test

import (
	"bufio"
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/coregx/reactor/config"
	"github.com/coregx/reactor/httpwire"
	"github.com/coregx/reactor/reactor"
	"github.com/coregx/reactor/wsframe"
)

// echoWSHandler echoes every text/binary message and records the
// connected/disconnected transitions it sees, for assertions that
// need to know the handler actually ran rather than just that bytes
// came back over the wire.
type echoWSHandler struct {
	opened chan struct{}
	closed chan struct{}
}

func newEchoWSHandler() *echoWSHandler {
	return &echoWSHandler{opened: make(chan struct{}, 8), closed: make(chan struct{}, 8)}
}

func (h *echoWSHandler) OnOpen(conn config.WSConn, req *httpwire.Request, session any) any {
	h.opened <- struct{}{}
	return nil
}
func (h *echoWSHandler) OnMessage(conn config.WSConn, state any, text string) {
	conn.SendText(text)
}
func (h *echoWSHandler) OnBinaryMessage(conn config.WSConn, state any, data []byte, size int) {
	conn.SendBinary(data)
}
func (h *echoWSHandler) OnPing(conn config.WSConn, state any, data []byte, size int, charset string) {
}
func (h *echoWSHandler) OnPong(conn config.WSConn, state any, data []byte, size int) {}
func (h *echoWSHandler) OnClose(conn config.WSConn, state any) {
	h.closed <- struct{}{}
}
func (h *echoWSHandler) OnError(conn config.WSConn, state any, message string)      {}
func (h *echoWSHandler) OnException(conn config.WSConn, state any, err error)       {}
func (h *echoWSHandler) OnUnknownException(err any, conn config.WSConn)            {}

// startServer builds a reactor with the given options on an ephemeral
// loopback port and returns its address plus a cleanup func.
func startServer(t *testing.T, opts ...config.Option) (addr string, cleanup func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr = ln.Addr().String()
	_ = ln.Close() // best-effort reservation; Serve rebinds it

	cfg := config.NewBuilder().Apply(opts...).Build()
	srv := reactor.New(cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(addr) }()

	waitForListen(t, addr)

	return addr, func() {
		_ = srv.Close()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Fatalf("server did not stop")
		}
	}
}

func waitForListen(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			_ = c.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server never started listening on %s", addr)
}

func TestIntegration_HTTPNotFound(t *testing.T) {
	addr, cleanup := startServer(t)
	defer cleanup()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := "GET /missing HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("write request: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := readAll(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}

	if !strings.HasPrefix(string(resp), "HTTP/1.1 404 Not Found") {
		t.Fatalf("status line: got %q", firstLine(resp))
	}
	if !strings.HasSuffix(strings.TrimRight(string(resp), "\r\n"), "/missing Not Found") {
		t.Fatalf("body: got %q", string(resp))
	}
}

func TestIntegration_WebSocketHandshake(t *testing.T) {
	h := newEchoWSHandler()
	addr, cleanup := startServer(t, config.HandleWebSocket("/ws", h))
	defer cleanup()

	conn, resp := dialWebSocket(t, addr, "dGhlIHNhbXBsZSBub25jZQ==")
	defer conn.Close()

	const wantAccept = "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got := headerValue(resp, "Sec-WebSocket-Accept"); got != wantAccept {
		t.Fatalf("Sec-WebSocket-Accept = %q, want %q", got, wantAccept)
	}
	select {
	case <-h.opened:
	case <-time.After(time.Second):
		t.Fatalf("OnOpen never ran")
	}
}

func TestIntegration_WebSocketEchoRoundTrip(t *testing.T) {
	h := newEchoWSHandler()
	addr, cleanup := startServer(t, config.HandleWebSocket("/ws", h))
	defer cleanup()

	conn, _ := dialWebSocket(t, addr, "dGhlIHNhbXBsZSBub25jZQ==")
	defer conn.Close()
	<-h.opened

	sendMaskedFrame(t, conn, wsframe.OpText, []byte("hello reactor"))

	hdr, payload := readFrame(t, conn)
	if hdr.Opcode != wsframe.OpText {
		t.Fatalf("opcode = %v, want text", hdr.Opcode)
	}
	if string(payload) != "hello reactor" {
		t.Fatalf("payload = %q", payload)
	}
}

func TestIntegration_WebSocketLargeBinaryMessage(t *testing.T) {
	h := newEchoWSHandler()
	addr, cleanup := startServer(t, config.HandleWebSocket("/ws", h))
	defer cleanup()

	conn, _ := dialWebSocket(t, addr, "dGhlIHNhbXBsZSBub25jZQ==")
	defer conn.Close()
	<-h.opened

	payload := make([]byte, 100000)
	for i := range payload {
		payload[i] = byte(i)
	}
	sendMaskedFrame(t, conn, wsframe.OpBinary, payload)

	hdr, got := readFrame(t, conn)
	if hdr.Opcode != wsframe.OpBinary {
		t.Fatalf("opcode = %v, want binary", hdr.Opcode)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestIntegration_WebSocketPingPong(t *testing.T) {
	h := newEchoWSHandler()
	addr, cleanup := startServer(t, config.HandleWebSocket("/ws", h))
	defer cleanup()

	conn, _ := dialWebSocket(t, addr, "dGhlIHNhbXBsZSBub25jZQ==")
	defer conn.Close()
	<-h.opened

	sendMaskedFrame(t, conn, wsframe.OpPing, []byte("ping-payload"))

	hdr, payload := readFrame(t, conn)
	if hdr.Opcode != wsframe.OpPong {
		t.Fatalf("opcode = %v, want pong", hdr.Opcode)
	}
	if string(payload) != "ping-payload" {
		t.Fatalf("pong payload = %q", payload)
	}
}

// --- helpers ---

func dialWebSocket(t *testing.T, addr, key string) (net.Conn, []byte) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	req := "GET /ws HTTP/1.1\r\n" +
		"Host: x\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: " + key + "\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("write handshake: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)
	var resp bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read handshake response: %v", err)
		}
		resp.WriteString(line)
		if line == "\r\n" {
			break
		}
	}
	conn.SetReadDeadline(time.Time{})
	return &bufReaderConn{Conn: conn, r: r}, resp.Bytes()
}

// bufReaderConn lets subsequent frame reads go through the same
// bufio.Reader the handshake used, so buffered bytes aren't lost.
type bufReaderConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufReaderConn) Read(p []byte) (int, error) { return c.r.Read(p) }

func sendMaskedFrame(t *testing.T, conn net.Conn, op wsframe.Opcode, payload []byte) {
	t.Helper()
	mask := [4]byte{0x12, 0x34, 0x56, 0x78}
	frame := wsframe.Encode(op, payload, &mask)
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readFrame(t *testing.T, conn net.Conn) (wsframe.Header, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	var buf []byte
	chunk := make([]byte, 4096)
	for {
		hdr, consumed, err := wsframe.DecodeHeader(buf, 1<<20)
		if err != nil {
			t.Fatalf("decode header: %v", err)
		}
		if consumed > 0 && len(buf)-consumed >= int(hdr.Length) {
			payload := append([]byte(nil), buf[consumed:consumed+int(hdr.Length)]...)
			if hdr.Masked {
				wsframe.ApplyMask(payload, hdr.Mask)
			}
			return hdr, payload
		}
		n, err := conn.Read(chunk)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		buf = append(buf, chunk[:n]...)
	}
}

func readAll(conn net.Conn) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			return buf, nil
		}
		if strings.Contains(string(buf), "\r\n\r\n") {
			return buf, nil
		}
	}
}

func firstLine(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func headerValue(resp []byte, name string) string {
	for _, line := range strings.Split(string(resp), "\r\n") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 && strings.EqualFold(strings.TrimSpace(parts[0]), name) {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}
