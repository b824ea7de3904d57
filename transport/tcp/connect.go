//go:build unix

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/tcpecho/api"
	"github.com/momentics/tcpecho/core/deadline"
	"github.com/momentics/tcpecho/reactor"
)

// Connect establishes a stream connection to addr without blocking past dl.
//
// The socket is created non-blocking, so connect(2) normally reports
// EINPROGRESS. Completion is detected by write readiness and the outcome read
// from SO_ERROR. Errors are api.ErrConnectTimedOut when dl expires first and
// api.ErrConnectFailed otherwise. The socket is closed on every failure path;
// on success ownership passes to the caller.
func Connect(addr Addr, dl deadline.Deadline) (*Socket, error) {
	const op = "connect"
	sa, err := addr.Sockaddr()
	if err != nil {
		return nil, api.NewError(api.CodeConnectFailed, op, err)
	}
	s, err := newSocket(addr.Domain())
	if err != nil {
		return nil, api.NewError(api.CodeIO, op, err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	switch err := unix.Connect(s.fd, sa); err {
	case nil:
		ok = true
		return s, nil
	case unix.EINPROGRESS, unix.EINTR, unix.EALREADY:
	default:
		return nil, api.NewError(api.CodeConnectFailed, op, err)
	}

	ready, err := reactor.WaitFD(s.fd, api.InterestWrite, dl)
	if err != nil {
		return nil, api.NewError(api.CodeConnectFailed, op, err)
	}
	if ready == 0 {
		return nil, api.NewError(api.CodeConnectTimedOut, op, nil)
	}

	soerr, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return nil, api.NewError(api.CodeConnectFailed, op, err)
	}
	if soerr != 0 {
		return nil, api.NewError(api.CodeConnectFailed, op, unix.Errno(soerr))
	}
	ok = true
	return s, nil
}
