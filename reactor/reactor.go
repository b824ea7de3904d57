// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral event reactor interface for readiness multiplexing.

package reactor

import (
	"github.com/momentics/tcpecho/api"
	"github.com/momentics/tcpecho/core/deadline"
)

// EventReactor multiplexes readiness over a registered set of descriptors.
// It is driven from a single goroutine; implementations are not safe for
// concurrent Register/Wait.
type EventReactor interface {
	// Register adds fd with the given interest. Notifications are
	// level-triggered: a descriptor stays ready until drained.
	Register(fd int, interest api.Interest) error

	// Unregister removes fd. It must be called before fd is closed.
	Unregister(fd int) error

	// Wait blocks until at least one registered descriptor is ready or the
	// deadline expires, and fills events. It returns 0 on expiry.
	Wait(events []Event, dl deadline.Deadline) (n int, err error)

	// Close releases the reactor descriptor.
	Close() error
}

// Event is one readiness notification returned by Wait.
type Event struct {
	Fd    int
	Ready api.Interest
}
