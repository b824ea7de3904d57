// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/tcpecho/api"
	"github.com/momentics/tcpecho/transport/tcp"
)

// Defaults reproduce the fixed configuration of the reference echo server.
const (
	DefaultListenAddr = "127.0.0.1:9000"
	DefaultBufferSize = 1024
	DefaultMaxEvents  = 16
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr string // literal IP bind address, e.g. "127.0.0.1:9000"
	Backlog    int    // listen(2) backlog
	BufferSize int    // bytes read per readiness event
	MaxEvents  int    // readiness events collected per wake-up
	CPU        int    // pin the loop thread to this CPU; -1 disables pinning
}

// DefaultConfig returns the reference defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		Backlog:    tcp.DefaultBacklog,
		BufferSize: DefaultBufferSize,
		MaxEvents:  DefaultMaxEvents,
		CPU:        -1,
	}
}

// Validate checks the configuration and returns an api.ErrConfiguration error.
func (c *Config) Validate() error {
	if _, err := tcp.ParseAddr(c.ListenAddr); err != nil {
		return api.Configurationf("listen address %q: %v", c.ListenAddr, err)
	}
	if c.Backlog <= 0 {
		return api.Configurationf("backlog must be positive, got %d", c.Backlog)
	}
	if c.BufferSize <= 0 {
		return api.Configurationf("buffer size must be positive, got %d", c.BufferSize)
	}
	if c.MaxEvents <= 0 {
		return api.Configurationf("max events must be positive, got %d", c.MaxEvents)
	}
	return nil
}
