// Package api
// Author: momentics
//
// Readiness interest flags shared by the one-shot poller and the epoll reactor.

package api

import "strings"

// Interest is a bit set of readiness conditions.
type Interest uint32

const (
	// InterestRead: a read would not block.
	InterestRead Interest = 1 << iota
	// InterestWrite: a write would not block.
	InterestWrite
	// InterestPeerClose: the peer shut down its writing half.
	InterestPeerClose
	// ReadyError is reported, never requested: the descriptor has a pending error.
	ReadyError
	// ReadyHangup is reported, never requested: both directions are closed.
	ReadyHangup
)

// Has reports whether all bits of other are set.
func (i Interest) Has(other Interest) bool {
	return i&other == other
}

// Any reports whether at least one bit of other is set.
func (i Interest) Any(other Interest) bool {
	return i&other != 0
}

// String renders the set as "read|write".
func (i Interest) String() string {
	if i == 0 {
		return "none"
	}
	var parts []string
	for _, f := range []struct {
		bit  Interest
		name string
	}{
		{InterestRead, "read"},
		{InterestWrite, "write"},
		{InterestPeerClose, "peerclose"},
		{ReadyError, "error"},
		{ReadyHangup, "hangup"},
	} {
		if i&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// PollFD pairs a descriptor with the readiness it waits for. Ready is filled
// by the poller.
type PollFD struct {
	Fd       int
	Interest Interest
	Ready    Interest
}
