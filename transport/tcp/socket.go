//go:build unix

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Socket owns one non-blocking stream descriptor. The descriptor is released
// by the first Close; later calls are no-ops, so callers can combine an
// early explicit Close with a deferred one.
//
// A Socket has a single owner and is not safe for concurrent use.
type Socket struct {
	fd     int
	closed bool
}

// newSocket creates a non-blocking, close-on-exec stream socket.
func newSocket(domain int) (*Socket, error) {
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, errors.Wrap(err, "socket")
	}
	s, err := NewSocketFromFD(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return s, nil
}

// NewSocketFromFD takes ownership of fd and switches it to non-blocking,
// close-on-exec mode.
func NewSocketFromFD(fd int) (*Socket, error) {
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, errors.Wrapf(err, "set non-blocking fd=%d", fd)
	}
	return &Socket{fd: fd}, nil
}

// Fd returns the raw descriptor, or -1 once closed.
func (s *Socket) Fd() int {
	if s.closed {
		return -1
	}
	return s.fd
}

// Closed reports whether the descriptor was released.
func (s *Socket) Closed() bool {
	return s.closed
}

// Close releases the descriptor exactly once.
func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := unix.Close(s.fd); err != nil {
		return errors.Wrapf(err, "close fd=%d", s.fd)
	}
	return nil
}

// PeerAddr returns the remote transport address.
func (s *Socket) PeerAddr() (Addr, error) {
	sa, err := unix.Getpeername(s.fd)
	if err != nil {
		return Addr{}, errors.Wrap(err, "getpeername")
	}
	return addrFromSockaddr(sa)
}

// LocalAddr returns the bound transport address.
func (s *Socket) LocalAddr() (Addr, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return Addr{}, errors.Wrap(err, "getsockname")
	}
	return addrFromSockaddr(sa)
}

// SetNoDelay toggles Nagle's algorithm.
func (s *Socket) SetNoDelay(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return errors.Wrap(unix.SetsockoptInt(s.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v), "TCP_NODELAY")
}

// ShutdownWrite half-closes the sending direction.
func (s *Socket) ShutdownWrite() error {
	return errors.Wrap(unix.Shutdown(s.fd, unix.SHUT_WR), "shutdown")
}
