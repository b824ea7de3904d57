// File: server/server.go
// Package server provides the readiness-multiplexed echo server: one loop
// goroutine accepts connections and echoes data for every registered
// connection, without a goroutine per connection.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/momentics/tcpecho/affinity"
	"github.com/momentics/tcpecho/api"
	"github.com/momentics/tcpecho/control"
	"github.com/momentics/tcpecho/core/deadline"
	"github.com/momentics/tcpecho/reactor"
	"github.com/momentics/tcpecho/transport/tcp"
)

var ErrAlreadyRunning = errors.New("server already running")

// Server owns the listener, the reactor and every registered connection.
type Server struct {
	cfg     *Config
	log     *logrus.Entry
	metrics *control.ServerMetrics
	probes  *control.DebugProbes
	filter  func([]byte)

	reactor reactor.EventReactor
	ln      *tcp.Listener
	conns   *registry
	buf     []byte
	events  []reactor.Event

	// self-pipe used by Shutdown to wake the loop
	wakeMu       sync.Mutex
	wakeR, wakeW int

	serving     atomic.Bool
	started     atomic.Bool
	releaseOnce sync.Once
}

// NewServer binds the listener and prepares the reactor. The server does not
// accept until Serve is called; Close releases it if Serve never runs.
func NewServer(cfg *Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		conns:  newRegistry(),
		buf:    make([]byte, cfg.BufferSize),
		events: make([]reactor.Event, cfg.MaxEvents),
		wakeR:  -1,
		wakeW:  -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if s.metrics == nil {
		s.metrics = control.NewServerMetrics(nil)
	}

	if err := s.setup(); err != nil {
		s.release()
		return nil, err
	}
	if s.probes != nil {
		s.registerProbes(s.probes)
	}
	return s, nil
}

func (s *Server) setup() error {
	addr, _ := tcp.ParseAddr(s.cfg.ListenAddr)
	ln, err := tcp.Listen(addr, s.cfg.Backlog)
	if err != nil {
		return api.NewError(api.CodeIO, "listen", err)
	}
	s.ln = ln

	r, err := reactor.NewReactor()
	if err != nil {
		return api.NewError(api.CodeIO, "reactor", err)
	}
	s.reactor = r
	if err := r.Register(ln.Fd(), api.InterestRead); err != nil {
		return api.NewError(api.CodeIO, "register listener", err)
	}

	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return api.NewError(api.CodeIO, "pipe", err)
	}
	s.wakeR, s.wakeW = p[0], p[1]
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			return api.NewError(api.CodeIO, "pipe", err)
		}
	}
	if err := r.Register(s.wakeR, api.InterestRead); err != nil {
		return api.NewError(api.CodeIO, "register wake pipe", err)
	}
	return nil
}

func (s *Server) registerProbes(dp *control.DebugProbes) {
	dp.RegisterProbe("server.addr", func() any { return s.ln.Addr().String() })
	dp.RegisterProbe("server.serving", func() any { return s.serving.Load() })
	dp.RegisterProbe("server.connections", func() any { return s.conns.len() })
	dp.RegisterProbe("server.peers", func() any { return s.conns.peers() })
}

// Addr returns the bound listening address.
func (s *Server) Addr() tcp.Addr {
	return s.ln.Addr()
}

// Connections returns the size of the registered set. Safe for concurrent use.
func (s *Server) Connections() int {
	return s.conns.len()
}

// Serving reports whether the loop is running. Safe for concurrent use.
func (s *Server) Serving() bool {
	return s.serving.Load()
}

// Serve runs the multiplexer loop on the calling goroutine until Shutdown is
// called (returns nil) or a listener/multiplexer failure occurs (returns the
// error; the server cannot be restarted). Per-connection failures only drop
// that connection.
func (s *Server) Serve() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.release()

	release, err := affinity.Pin(s.cfg.CPU)
	if err != nil {
		s.log.WithError(err).WithField("cpu", s.cfg.CPU).Warn("cpu pinning failed, loop runs unpinned")
	}
	defer release()

	s.serving.Store(true)
	s.log.WithField("addr", s.ln.Addr().String()).Info("echo server listening")
	for {
		n, err := s.reactor.Wait(s.events, deadline.Unbounded())
		if err != nil {
			return api.NewError(api.CodeIO, "multiplexer wait", err)
		}
		for _, ev := range s.events[:n] {
			switch ev.Fd {
			case s.wakeR:
				s.log.Info("shutdown requested")
				return nil
			case s.ln.Fd():
				if err := s.acceptPending(); err != nil {
					return err
				}
			default:
				s.service(ev)
			}
		}
	}
}

// acceptPending accepts until the listener's queue is empty. Only failures
// of the listening descriptor itself are returned.
func (s *Server) acceptPending() error {
	for {
		sock, peer, err := s.ln.Accept()
		if err == api.ErrWouldBlock {
			return nil
		}
		if err != nil {
			return err
		}
		c := &conn{sock: sock, peer: peer, state: stateAccepted, since: time.Now()}
		log := s.log.WithField("peer", peer.String())
		log.Info("accept")

		if err := s.reactor.Register(sock.Fd(), api.InterestRead|api.InterestPeerClose); err != nil {
			log.WithError(err).Warn("register failed, closing connection")
			_ = sock.Close()
			continue
		}
		c.state = stateEstablished
		s.conns.add(c)
		s.metrics.Accepted.Inc()
		s.metrics.Active.Inc()
	}
}

// service handles one readiness event on an established connection.
func (s *Server) service(ev reactor.Event) {
	c, ok := s.conns.get(ev.Fd)
	if !ok {
		return
	}
	switch {
	case ev.Ready.Any(api.InterestPeerClose):
		s.drop(c, "peer_closed")
	case ev.Ready.Any(api.ReadyHangup):
		s.drop(c, "hangup")
	case ev.Ready.Any(api.ReadyError):
		s.drop(c, "error")
	case ev.Ready.Has(api.InterestRead):
		s.echo(c)
	}
}

// echo reads one chunk and writes it back in a single best-effort attempt.
// A short write is not retried: the remainder is dropped and counted.
func (s *Server) echo(c *conn) {
	log := s.log.WithField("peer", c.peer.String())

	n, err := c.sock.ReadOnce(s.buf)
	if err == api.ErrWouldBlock {
		return
	}
	if err != nil {
		if errors.Is(err, api.ErrPeerClosed) {
			s.drop(c, "peer_closed")
		} else {
			log.WithError(err).Warn("read from client")
			s.drop(c, "error")
		}
		return
	}
	log.WithField("size", n).Info("data coming")
	s.metrics.BytesRead.Add(float64(n))

	chunk := s.buf[:n]
	if s.filter != nil {
		s.filter(chunk)
	}
	w, err := c.sock.WriteOnce(chunk)
	if err != nil && err != api.ErrWouldBlock {
		log.WithError(err).Warn("write to client")
		s.drop(c, "error")
		return
	}
	log.WithField("size", w).Info("data writing")
	s.metrics.BytesWritten.Add(float64(w))
	if w < n {
		s.metrics.ShortWrites.Inc()
		log.WithFields(logrus.Fields{"size": n, "written": w}).Warn("short write, remainder dropped")
	}
}

// drop removes c from the registered set and closes it.
func (s *Server) drop(c *conn, reason string) {
	fd := c.sock.Fd()
	s.conns.remove(fd)
	if err := s.reactor.Unregister(fd); err != nil {
		s.log.WithError(err).Debug("unregister")
	}
	_ = c.sock.Close()
	s.log.WithFields(logrus.Fields{"peer": c.peer.String(), "reason": reason}).Info("connection disconnect")
	s.metrics.Disconnects.WithLabelValues(reason).Inc()
	s.metrics.Active.Dec()
}

// Shutdown asks a running loop to return. It is safe to call from any
// goroutine, including before Serve starts, in which case Serve returns
// immediately. Once the server has released its resources it returns
// io.ErrClosedPipe.
func (s *Server) Shutdown() error {
	s.wakeMu.Lock()
	defer s.wakeMu.Unlock()
	if s.wakeW < 0 {
		return io.ErrClosedPipe
	}
	_, err := unix.Write(s.wakeW, []byte{1})
	if err == unix.EAGAIN {
		// a wake-up is already pending
		return nil
	}
	return err
}

// Close releases every resource of a server whose Serve was never started.
// A running server must be stopped with Shutdown instead.
func (s *Server) Close() error {
	if s.started.CompareAndSwap(false, true) {
		s.release()
	}
	return nil
}

// release closes all registered connections, the listener, the reactor and
// the wake pipe, exactly once.
func (s *Server) release() {
	s.releaseOnce.Do(func() {
		s.serving.Store(false)
		for _, c := range s.conns.drain() {
			_ = c.sock.Close()
			s.metrics.Active.Dec()
		}
		if s.reactor != nil {
			_ = s.reactor.Close()
		}
		if s.ln != nil {
			_ = s.ln.Close()
		}
		s.wakeMu.Lock()
		for _, fd := range []int{s.wakeR, s.wakeW} {
			if fd >= 0 {
				_ = unix.Close(fd)
			}
		}
		s.wakeW = -1
		s.wakeMu.Unlock()
	})
}
