package reactor

import (
	"net"
	"syscall"
)

// rawConn is the subset of syscall.Conn every net.Conn from
// net.Listener.Accept satisfies.
type rawConn interface {
	SyscallConn() (syscall.RawConn, error)
}

// fdOf extracts the raw file descriptor backing an accepted
// net.Conn so the reactor can register it with the selector and issue
// unix.Read/unix.Write directly. The net.Conn itself is retained
// purely so its Close method can release the fd during teardown; the
// reactor never calls its Read or Write.
func fdOf(nc net.Conn) (int, error) {
	rc, ok := nc.(rawConn)
	if !ok {
		return -1, errUnsupportedConn
	}

	sc, err := rc.SyscallConn()
	if err != nil {
		return -1, err
	}

	var fd int
	err = sc.Control(func(p uintptr) { fd = int(p) })
	if err != nil {
		return -1, err
	}
	return fd, nil
}
