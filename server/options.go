// File: server/options.go
// Package server defines functional options for the echo Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/sirupsen/logrus"

	"github.com/momentics/tcpecho/control"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithLogger sets the structured logger for connection lines.
func WithLogger(log *logrus.Entry) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// WithMetrics sets the collectors updated by the loop.
func WithMetrics(m *control.ServerMetrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithProbes registers the server's debug probes (connection count, peers,
// serving state) on dp.
func WithProbes(dp *control.DebugProbes) ServerOption {
	return func(s *Server) {
		s.probes = dp
	}
}

// WithEchoFilter installs a hook that may modify each chunk in place after it
// is read and before it is echoed. It runs on the loop goroutine. Test
// harnesses use it for fault injection.
func WithEchoFilter(fn func(chunk []byte)) ServerOption {
	return func(s *Server) {
		s.filter = fn
	}
}
