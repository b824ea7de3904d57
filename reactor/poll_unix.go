//go:build unix

// File: reactor/poll_unix.go
// Author: momentics <momentics@gmail.com>
//
// One-shot readiness wait over an explicit set of (descriptor, interest)
// pairs. Used by the connector and the timed transfer primitives.

package reactor

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/tcpecho/api"
	"github.com/momentics/tcpecho/core/deadline"
)

// Poll waits until one of fds becomes ready or dl expires and fills each
// entry's Ready field. It returns the number of ready entries; 0 means the
// deadline expired. Interrupted waits resume with the remaining time
// recomputed from dl, never from the original duration.
func Poll(fds []api.PollFD, dl deadline.Deadline) (int, error) {
	pfds := make([]unix.PollFd, len(fds))
	for i := range fds {
		fds[i].Ready = 0
		pfds[i] = unix.PollFd{Fd: int32(fds[i].Fd), Events: toPoll(fds[i].Interest)}
	}
	for {
		n, err := unix.Poll(pfds, dl.PollTimeout())
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, errors.Wrap(err, "poll")
		}
		if n == 0 && !dl.Expired() && dl.Bounded() {
			// Woken before the deadline without an event.
			continue
		}
		for i := range pfds {
			fds[i].Ready = fromPoll(pfds[i].Revents)
		}
		return n, nil
	}
}

// WaitFD waits for a single descriptor. It returns the ready set, which is
// empty when the deadline expired first.
func WaitFD(fd int, interest api.Interest, dl deadline.Deadline) (api.Interest, error) {
	fds := [1]api.PollFD{{Fd: fd, Interest: interest}}
	if _, err := Poll(fds[:], dl); err != nil {
		return 0, err
	}
	return fds[0].Ready, nil
}

func toPoll(interest api.Interest) int16 {
	var ev int16
	if interest&api.InterestRead != 0 {
		ev |= unix.POLLIN
	}
	if interest&api.InterestWrite != 0 {
		ev |= unix.POLLOUT
	}
	return ev
}

func fromPoll(rev int16) api.Interest {
	var ready api.Interest
	if rev&unix.POLLIN != 0 {
		ready |= api.InterestRead
	}
	if rev&unix.POLLOUT != 0 {
		ready |= api.InterestWrite
	}
	if rev&unix.POLLERR != 0 {
		ready |= api.ReadyError
	}
	if rev&(unix.POLLHUP|unix.POLLNVAL) != 0 {
		ready |= api.ReadyHangup
	}
	return ready
}
