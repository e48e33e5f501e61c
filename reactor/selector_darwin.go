//go:build darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

// kqueueSelector is the Darwin/BSD selector: a thin wrapper over
// Kqueue/Kevent that manages a registry of many inbound server
// connections keyed by fd, the same shape selector_linux.go gives the
// epoll path.
type kqueueSelector struct {
	kq    int
	conns map[int]*conn
}

func newSelector() (selector, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueueSelector{kq: kq, conns: make(map[int]*conn)}, nil
}

func (s *kqueueSelector) add(fd int, token *conn) error {
	s.conns[fd] = token
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD},
	}
	_, err := unix.Kevent(s.kq, changes, nil, nil)
	return err
}

func (s *kqueueSelector) writable(fd int, enabled bool) error {
	flag := uint16(unix.EV_DELETE)
	if enabled {
		flag = unix.EV_ADD
	}
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flag},
	}
	_, err := unix.Kevent(s.kq, changes, nil, nil)
	if err == unix.ENOENT && !enabled {
		return nil
	}
	return err
}

func (s *kqueueSelector) remove(fd int) error {
	delete(s.conns, fd)
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, _ = unix.Kevent(s.kq, changes, nil, nil) // best-effort: fd may already be gone
	return nil
}

func (s *kqueueSelector) wait(dst []readyEvent) ([]readyEvent, error) {
	var raw [128]unix.Kevent_t
	n, err := unix.Kevent(s.kq, nil, raw[:], nil)
	if err != nil {
		if err == unix.EINTR {
			return dst[:0], nil
		}
		return nil, err
	}

	dst = dst[:0]
	for i := 0; i < n; i++ {
		c, ok := s.conns[int(raw[i].Ident)]
		if !ok {
			continue
		}
		dst = append(dst, readyEvent{
			conn:     c,
			readable: raw[i].Filter == unix.EVFILT_READ,
			writable: raw[i].Filter == unix.EVFILT_WRITE,
		})
	}
	return dst, nil
}

func (s *kqueueSelector) close() error {
	return unix.Close(s.kq)
}
