//go:build linux

package reactor

import (
	"golang.org/x/sys/unix"
)

// epollSelector is the Linux selector: a thin wrapper over
// EpollCreate1/EpollCtl/EpollWait that manages a registry of many
// inbound server connections keyed by fd.
type epollSelector struct {
	epfd  int
	conns map[int]*conn
}

func newSelector() (selector, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &epollSelector{epfd: epfd, conns: make(map[int]*conn)}, nil
}

func (s *epollSelector) add(fd int, token *conn) error {
	s.conns[fd] = token
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (s *epollSelector) writable(fd int, enabled bool) error {
	events := uint32(unix.EPOLLIN)
	if enabled {
		events |= unix.EPOLLOUT
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (s *epollSelector) remove(fd int) error {
	delete(s.conns, fd)
	// EPOLL_CTL_DEL with a nil event is accepted by Linux >= 2.6.9, but
	// older guidance passes a throwaway event struct for portability
	// across kernels; unix.EpollCtl requires a non-nil pointer.
	var ev unix.EpollEvent
	err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, &ev)
	if err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return err
}

func (s *epollSelector) wait(dst []readyEvent) ([]readyEvent, error) {
	var raw [128]unix.EpollEvent
	n, err := unix.EpollWait(s.epfd, raw[:], -1)
	if err != nil {
		if err == unix.EINTR {
			return dst[:0], nil
		}
		return nil, err
	}

	dst = dst[:0]
	for i := 0; i < n; i++ {
		c, ok := s.conns[int(raw[i].Fd)]
		if !ok {
			continue
		}
		dst = append(dst, readyEvent{
			conn:     c,
			readable: raw[i].Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			writable: raw[i].Events&unix.EPOLLOUT != 0,
		})
	}
	return dst, nil
}

func (s *epollSelector) close() error {
	return unix.Close(s.epfd)
}
