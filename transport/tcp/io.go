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

func wouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// WriteAll writes the whole buffer before dl. On EAGAIN it waits for write
// readiness with the remaining time recomputed from dl. It returns len(buf)
// and nil, or the number of bytes the transport accepted so far together
// with api.ErrTimedOut or api.ErrIO. A partial count is never a success.
func (s *Socket) WriteAll(buf []byte, dl deadline.Deadline) (int, error) {
	const op = "write data"
	if s.closed {
		return 0, api.NewError(api.CodeIO, op, api.ErrClosed)
	}
	written := 0
	for written < len(buf) {
		n, err := unix.Write(s.fd, buf[written:])
		switch {
		case err == nil && n > 0:
			written += n
		case err == nil, wouldBlock(err):
			if err := s.await(api.InterestWrite, dl, op); err != nil {
				return written, err
			}
		case err == unix.EINTR:
		default:
			return written, api.NewError(api.CodeIO, op, err)
		}
	}
	return written, nil
}

// ReadFull fills buf before dl, mirroring WriteAll on the read side. A zero
// byte read before buf is full reports api.ErrPeerClosed.
func (s *Socket) ReadFull(buf []byte, dl deadline.Deadline) (int, error) {
	const op = "read data"
	if s.closed {
		return 0, api.NewError(api.CodeIO, op, api.ErrClosed)
	}
	got := 0
	for got < len(buf) {
		n, err := unix.Read(s.fd, buf[got:])
		switch {
		case err == nil && n > 0:
			got += n
		case err == nil:
			return got, api.NewError(api.CodePeerClosed, op, nil)
		case wouldBlock(err):
			if err := s.await(api.InterestRead, dl, op); err != nil {
				return got, err
			}
		case err == unix.EINTR:
		default:
			return got, api.NewError(api.CodeIO, op, err)
		}
	}
	return got, nil
}

// await suspends until the descriptor is ready for interest or dl expires.
// Error and hangup readiness return nil: the next syscall reports the cause.
func (s *Socket) await(interest api.Interest, dl deadline.Deadline, op string) error {
	ready, err := reactor.WaitFD(s.fd, interest, dl)
	if err != nil {
		return api.NewError(api.CodeIO, op, err)
	}
	if ready == 0 {
		return api.NewError(api.CodeTimedOut, op, nil)
	}
	return nil
}

// ReadOnce performs one non-blocking read. It returns api.ErrWouldBlock when
// no data is pending and an api.ErrPeerClosed error on end of stream.
func (s *Socket) ReadOnce(buf []byte) (int, error) {
	const op = "read"
	if s.closed {
		return 0, api.NewError(api.CodeIO, op, api.ErrClosed)
	}
	for {
		n, err := unix.Read(s.fd, buf)
		switch {
		case err == nil && n == 0 && len(buf) > 0:
			return 0, api.NewError(api.CodePeerClosed, op, nil)
		case err == nil:
			return n, nil
		case wouldBlock(err):
			return 0, api.ErrWouldBlock
		case err == unix.EINTR:
			continue
		}
		return 0, api.NewError(api.CodeIO, op, err)
	}
}

// WriteOnce performs one non-blocking write and may accept fewer bytes than
// len(buf). It returns api.ErrWouldBlock when the send buffer is full.
func (s *Socket) WriteOnce(buf []byte) (int, error) {
	const op = "write"
	if s.closed {
		return 0, api.NewError(api.CodeIO, op, api.ErrClosed)
	}
	for {
		n, err := unix.Write(s.fd, buf)
		switch {
		case err == nil:
			return n, nil
		case wouldBlock(err):
			return 0, api.ErrWouldBlock
		case err == unix.EINTR:
			continue
		}
		return 0, api.NewError(api.CodeIO, op, err)
	}
}
