// File: core/deadline/deadline.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Monotonic deadlines shared by the connector, the transfer primitives and the
// client driver. A Deadline is fixed once; every wait recomputes the time left
// from the same absolute instant so repeated partial-I/O waits never drift.

package deadline

import "time"

// Now returns the current instant. The returned time carries Go's monotonic
// clock reading, so differences between instants ignore wall-clock steps.
func Now() time.Time {
	return time.Now()
}

// Elapsed returns the monotonic duration since start.
func Elapsed(start time.Time) time.Duration {
	return Now().Sub(start)
}

// Deadline is an absolute point in monotonic time, or unbounded.
// The zero value is unbounded.
type Deadline struct {
	at      time.Time
	bounded bool
}

// Unbounded returns a deadline that never expires.
func Unbounded() Deadline {
	return Deadline{}
}

// After derives a deadline d from now. A non-positive d yields Unbounded,
// matching the "zero or negative timeout means wait forever" convention.
func After(d time.Duration) Deadline {
	if d <= 0 {
		return Unbounded()
	}
	return Deadline{at: Now().Add(d), bounded: true}
}

// At returns a deadline fixed at t. t must come from Now (or be derived from
// it) to keep the monotonic reading.
func At(t time.Time) Deadline {
	return Deadline{at: t, bounded: true}
}

// Bounded reports whether the deadline can expire.
func (d Deadline) Bounded() bool {
	return d.bounded
}

// Time returns the absolute instant and whether the deadline is bounded.
func (d Deadline) Time() (time.Time, bool) {
	return d.at, d.bounded
}

// Remaining returns the time left before the deadline, clamped at zero.
// The boolean is false for an unbounded deadline, in which case the duration
// is meaningless. A zero duration on a bounded deadline means "expired now".
func (d Deadline) Remaining() (time.Duration, bool) {
	if !d.bounded {
		return 0, false
	}
	left := d.at.Sub(Now())
	if left < 0 {
		left = 0
	}
	return left, true
}

// Expired reports whether a bounded deadline has passed.
func (d Deadline) Expired() bool {
	left, bounded := d.Remaining()
	return bounded && left == 0
}

// PollTimeout converts the remaining time into a poll(2)/epoll_wait(2)
// timeout in milliseconds: -1 when unbounded, 0 once expired. Partial
// milliseconds round up so a waiter never spins on a zero timeout while time
// is still left.
func (d Deadline) PollTimeout() int {
	left, bounded := d.Remaining()
	if !bounded {
		return -1
	}
	ms := (left + time.Millisecond - 1) / time.Millisecond
	if ms > maxPollMillis {
		ms = maxPollMillis
	}
	return int(ms)
}

// maxPollMillis keeps the poll timeout inside a C int.
const maxPollMillis = 1<<31 - 1

// String renders the deadline for log fields.
func (d Deadline) String() string {
	left, bounded := d.Remaining()
	if !bounded {
		return "unbounded"
	}
	return left.String()
}
