//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based reactor implementation and factory.

package reactor

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/tcpecho/api"
	"github.com/momentics/tcpecho/core/deadline"
)

// linuxReactor is a level-triggered epoll reactor.
type linuxReactor struct {
	epfd int
	raw  []unix.EpollEvent
}

// NewReactor constructs a new platform-specific EventReactor for Linux.
func NewReactor() (EventReactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "epoll_create")
	}
	return &linuxReactor{epfd: epfd}, nil
}

func toEpoll(interest api.Interest) uint32 {
	var ev uint32
	if interest&api.InterestRead != 0 {
		ev |= unix.EPOLLIN
	}
	if interest&api.InterestWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	if interest&api.InterestPeerClose != 0 {
		ev |= unix.EPOLLRDHUP
	}
	return ev
}

func fromEpoll(ev uint32) api.Interest {
	var ready api.Interest
	if ev&unix.EPOLLIN != 0 {
		ready |= api.InterestRead
	}
	if ev&unix.EPOLLOUT != 0 {
		ready |= api.InterestWrite
	}
	if ev&unix.EPOLLRDHUP != 0 {
		ready |= api.InterestPeerClose
	}
	if ev&unix.EPOLLERR != 0 {
		ready |= api.ReadyError
	}
	if ev&unix.EPOLLHUP != 0 {
		ready |= api.ReadyHangup
	}
	return ready
}

// Register adds fd to the epoll interest list.
func (r *linuxReactor) Register(fd int, interest api.Interest) error {
	ev := unix.EpollEvent{Events: toEpoll(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return errors.Wrapf(err, "epoll_ctl add fd=%d", fd)
	}
	return nil
}

// Unregister removes fd from the epoll interest list.
func (r *linuxReactor) Unregister(fd int) error {
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errors.Wrapf(err, "epoll_ctl del fd=%d", fd)
	}
	return nil
}

// Wait blocks for epoll events. EINTR restarts the wait with the timeout
// recomputed from dl.
func (r *linuxReactor) Wait(events []Event, dl deadline.Deadline) (int, error) {
	if len(events) == 0 {
		return 0, errors.New("reactor: empty event buffer")
	}
	if cap(r.raw) < len(events) {
		r.raw = make([]unix.EpollEvent, len(events))
	}
	raw := r.raw[:len(events)]
	for {
		n, err := unix.EpollWait(r.epfd, raw, dl.PollTimeout())
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, errors.Wrap(err, "epoll_wait")
		}
		for i := 0; i < n; i++ {
			events[i] = Event{Fd: int(raw[i].Fd), Ready: fromEpoll(raw[i].Events)}
		}
		return n, nil
	}
}

// Close closes the epoll instance.
func (r *linuxReactor) Close() error {
	return unix.Close(r.epfd)
}
