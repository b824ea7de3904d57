// File: client/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"strconv"
	"time"

	"github.com/momentics/tcpecho/api"
	"github.com/momentics/tcpecho/transport/tcp"
)

// MaxPayload is the largest payload a single echo packet may carry.
const MaxPayload = 1024

// Count is a bounded or unbounded repetition count.
type Count struct {
	n       int
	bounded bool
}

// Finite returns a count of exactly n.
func Finite(n int) Count { return Count{n: n, bounded: true} }

// Unbounded returns a count that never runs out.
func Unbounded() Count { return Count{} }

// Bounded reports whether the count is finite.
func (c Count) Bounded() bool { return c.bounded }

// N returns the finite count, or -1 when unbounded.
func (c Count) N() int {
	if !c.bounded {
		return -1
	}
	return c.n
}

// Allows reports whether the 1-based iteration i is within the count.
func (c Count) Allows(i int) bool {
	return !c.bounded || i <= c.n
}

func (c Count) String() string {
	if !c.bounded {
		return "unbounded"
	}
	return strconv.Itoa(c.n)
}

// PacketCount maps the command-line packet count: negative is unbounded,
// zero is rejected.
func PacketCount(n int) (Count, error) {
	switch {
	case n < 0:
		return Unbounded(), nil
	case n == 0:
		return Count{}, api.Configurationf("packet count must not be 0")
	}
	return Finite(n), nil
}

// RepeatCount maps the command-line repeat count: zero or negative is
// unbounded.
func RepeatCount(n int) Count {
	if n <= 0 {
		return Unbounded()
	}
	return Finite(n)
}

// Config describes one echo test schedule. It is built and validated once and
// is not modified by the driver.
type Config struct {
	Host        string
	Port        uint16
	Payload     []byte
	Packets     Count         // packets per run
	Repeats     Count         // runs
	PacketDelay time.Duration // sleep between packets of one run
	RepeatDelay time.Duration // sleep between runs
	Timeout     time.Duration // per resolve, connect, write and read; <= 0 waits forever
	Family      tcp.Family
}

// DefaultConfig returns the default schedule: one run of one "hello world"
// packet with a two second timeout.
func DefaultConfig() *Config {
	return &Config{
		Payload:     []byte("hello world"),
		Packets:     Finite(1),
		Repeats:     Finite(1),
		PacketDelay: time.Second,
		RepeatDelay: time.Second,
		Timeout:     2 * time.Second,
		Family:      tcp.FamilyAuto,
	}
}

// Validate checks the configuration and returns an api.ErrConfiguration error.
func (c *Config) Validate() error {
	if c.Host == "" {
		return api.Configurationf("require remote name and remote port")
	}
	if c.Port == 0 {
		return api.Configurationf("remote port range should be in [1, 65535]")
	}
	if len(c.Payload) == 0 {
		return api.Configurationf("message length must not be 0")
	}
	if len(c.Payload) > MaxPayload {
		return api.Configurationf("message length %d exceeds %d", len(c.Payload), MaxPayload)
	}
	if c.Packets.Bounded() && c.Packets.N() <= 0 {
		return api.Configurationf("packet count must be positive, got %d", c.Packets.N())
	}
	if c.Repeats.Bounded() && c.Repeats.N() <= 0 {
		return api.Configurationf("repeat count must be positive, got %d", c.Repeats.N())
	}
	if c.PacketDelay < 0 || c.RepeatDelay < 0 {
		return api.Configurationf("delays must not be negative")
	}
	switch c.Family {
	case tcp.FamilyAuto, tcp.FamilyIPv4, tcp.FamilyIPv6:
	default:
		return api.Configurationf("unknown address family %d", c.Family)
	}
	return nil
}
