//go:build unix

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/tcpecho/api"
	"github.com/momentics/tcpecho/core/deadline"
	"github.com/momentics/tcpecho/reactor"
)

// DefaultBacklog is the listen(2) backlog used when none is configured.
const DefaultBacklog = 10

// Listener is a non-blocking listening socket.
type Listener struct {
	sock *Socket
	addr Addr
}

// Listen binds addr with SO_REUSEADDR and starts listening. Port 0 picks an
// ephemeral port; Addr reports the bound address.
func Listen(addr Addr, backlog int) (*Listener, error) {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	sa, err := addr.Sockaddr()
	if err != nil {
		return nil, err
	}
	s, err := newSocket(addr.Domain())
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return nil, errors.Wrap(err, "setsockopt SO_REUSEADDR")
	}
	if err := unix.Bind(s.fd, sa); err != nil {
		return nil, errors.Wrapf(err, "bind %s", addr)
	}
	if err := unix.Listen(s.fd, backlog); err != nil {
		return nil, errors.Wrap(err, "listen")
	}
	bound, err := s.LocalAddr()
	if err != nil {
		return nil, err
	}
	ok = true
	return &Listener{sock: s, addr: bound}, nil
}

// Fd returns the listening descriptor for readiness registration.
func (l *Listener) Fd() int { return l.sock.Fd() }

// Addr returns the bound address.
func (l *Listener) Addr() Addr { return l.addr }

// Close releases the listening descriptor.
func (l *Listener) Close() error { return l.sock.Close() }

// Accept takes one pending connection without blocking. The returned socket
// is non-blocking and owned by the caller. It returns api.ErrWouldBlock when
// the accept queue is empty; aborted handshakes are skipped.
func (l *Listener) Accept() (*Socket, Addr, error) {
	if l.sock.Closed() {
		return nil, Addr{}, api.NewError(api.CodeIO, "accept", api.ErrClosed)
	}
	for {
		nfd, sa, err := unix.Accept(l.sock.fd)
		switch {
		case err == nil:
		case wouldBlock(err):
			return nil, Addr{}, api.ErrWouldBlock
		case err == unix.EINTR, err == unix.ECONNABORTED:
			continue
		default:
			return nil, Addr{}, api.NewError(api.CodeIO, "accept", err)
		}
		s, err := NewSocketFromFD(nfd)
		if err != nil {
			_ = unix.Close(nfd)
			return nil, Addr{}, api.NewError(api.CodeIO, "accept", err)
		}
		peer, err := addrFromSockaddr(sa)
		if err != nil {
			peer, _ = s.PeerAddr()
		}
		return s, peer, nil
	}
}

// AcceptWait accepts one connection, waiting for the listener to become
// readable until dl. It reports api.ErrTimedOut on expiry.
func (l *Listener) AcceptWait(dl deadline.Deadline) (*Socket, Addr, error) {
	for {
		s, peer, err := l.Accept()
		if err != api.ErrWouldBlock {
			return s, peer, err
		}
		ready, err := reactor.WaitFD(l.sock.fd, api.InterestRead, dl)
		if err != nil {
			return nil, Addr{}, api.NewError(api.CodeIO, "accept", err)
		}
		if ready == 0 {
			return nil, Addr{}, api.NewError(api.CodeTimedOut, "accept", nil)
		}
	}
}
