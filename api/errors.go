// Package api
// Author: momentics <momentics@gmail.com>
//
// Error taxonomy shared by the connector, the transfer primitives, the echo
// driver and the echo server.

package api

import (
	"bytes"
	"errors"
	"fmt"
)

// Sentinel errors. Every *Error matches exactly one of them through errors.Is.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrResolution      = errors.New("no usable address")
	ErrConnectTimedOut = errors.New("connect: timeout")
	ErrConnectFailed   = errors.New("connect failed")
	ErrTimedOut        = errors.New("operation timed out")
	ErrIO              = errors.New("i/o error")
	ErrPeerClosed      = errors.New("peer closed connection")
	ErrDataMismatch    = errors.New("data not matched")

	// ErrWouldBlock is returned by single-attempt operations on a
	// non-blocking descriptor that is not ready.
	ErrWouldBlock = errors.New("operation would block")
	// ErrClosed is returned when a descriptor handle was already released.
	ErrClosed = errors.New("descriptor is closed")
)

// ErrorCode classifies failures.
type ErrorCode int

const (
	CodeOK ErrorCode = iota
	CodeConfiguration
	CodeResolution
	CodeConnectTimedOut
	CodeConnectFailed
	CodeTimedOut
	CodeIO
	CodePeerClosed
	CodeDataMismatch
)

var codeNames = map[ErrorCode]string{
	CodeOK:              "ok",
	CodeConfiguration:   "configuration",
	CodeResolution:      "resolution",
	CodeConnectTimedOut: "connect_timeout",
	CodeConnectFailed:   "connect_failed",
	CodeTimedOut:        "timeout",
	CodeIO:              "io",
	CodePeerClosed:      "peer_closed",
	CodeDataMismatch:    "mismatch",
}

// String returns a short label, also used as a metrics label value.
func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

func (c ErrorCode) sentinel() error {
	switch c {
	case CodeConfiguration:
		return ErrConfiguration
	case CodeResolution:
		return ErrResolution
	case CodeConnectTimedOut:
		return ErrConnectTimedOut
	case CodeConnectFailed:
		return ErrConnectFailed
	case CodeTimedOut:
		return ErrTimedOut
	case CodeIO:
		return ErrIO
	case CodePeerClosed:
		return ErrPeerClosed
	case CodeDataMismatch:
		return ErrDataMismatch
	}
	return nil
}

// Error is a classified failure of one operation.
type Error struct {
	Code ErrorCode
	Op   string // operation, e.g. "connect", "read data"
	Err  error  // underlying cause, may be nil
}

// NewError creates a classified error for op wrapping cause.
func NewError(code ErrorCode, op string, cause error) *Error {
	return &Error{Code: code, Op: op, Err: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Code.String()
	if s := e.Code.sentinel(); s != nil {
		msg = s.Error()
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's code.
func (e *Error) Is(target error) bool {
	s := e.Code.sentinel()
	return s != nil && s == target
}

// Configurationf builds a configuration error with a formatted message.
func Configurationf(format string, args ...any) *Error {
	return NewError(CodeConfiguration, "", fmt.Errorf(format, args...))
}

// CodeOf classifies err. Unclassified non-nil errors map to CodeIO.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var m *MismatchError
	if errors.As(err, &m) {
		return CodeDataMismatch
	}
	for code := CodeConfiguration; code <= CodeDataMismatch; code++ {
		if errors.Is(err, code.sentinel()) {
			return code
		}
	}
	return CodeIO
}

// MismatchError reports an echoed payload that differs from what was sent.
type MismatchError struct {
	Sent     []byte
	Received []byte
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s at offset %d", ErrDataMismatch, e.Offset())
}

// Is matches ErrDataMismatch.
func (e *MismatchError) Is(target error) bool {
	return target == ErrDataMismatch
}

// Offset returns the first differing byte index, or -1 when the buffers are
// equal.
func (e *MismatchError) Offset() int {
	if bytes.Equal(e.Sent, e.Received) {
		return -1
	}
	n := len(e.Sent)
	if len(e.Received) < n {
		n = len(e.Received)
	}
	for i := 0; i < n; i++ {
		if e.Sent[i] != e.Received[i] {
			return i
		}
	}
	return n
}
