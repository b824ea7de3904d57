// File: server/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"sort"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/momentics/tcpecho/transport/tcp"
)

type connState int

const (
	stateAccepted connState = iota
	stateEstablished
)

func (s connState) String() string {
	if s == stateEstablished {
		return "established"
	}
	return "accepted"
}

// conn is one registered connection. Only the loop goroutine touches sock;
// peer and since are immutable after registration.
type conn struct {
	sock  *tcp.Socket
	peer  tcp.Addr
	state connState
	since time.Time
}

// registry is the registered connection set keyed by descriptor. Only the
// loop mutates it; debug probes read snapshots concurrently.
type registry struct {
	m cmap.ConcurrentMap[int, *conn]
}

func newRegistry() *registry {
	return &registry{
		m: cmap.NewWithCustomShardingFunction[int, *conn](func(fd int) uint32 {
			return uint32(fd)
		}),
	}
}

func (r *registry) add(c *conn) {
	r.m.Set(c.sock.Fd(), c)
}

func (r *registry) get(fd int) (*conn, bool) {
	return r.m.Get(fd)
}

func (r *registry) remove(fd int) (*conn, bool) {
	return r.m.Pop(fd)
}

func (r *registry) len() int {
	return r.m.Count()
}

// drain removes and returns every connection.
func (r *registry) drain() []*conn {
	var out []*conn
	for _, fd := range r.m.Keys() {
		if c, ok := r.m.Pop(fd); ok {
			out = append(out, c)
		}
	}
	return out
}

// peers returns "addr (state, age)" lines sorted by address.
func (r *registry) peers() []string {
	items := r.m.Items()
	out := make([]string, 0, len(items))
	now := time.Now()
	for _, c := range items {
		out = append(out, c.peer.String()+" ("+c.state.String()+", "+now.Sub(c.since).Round(time.Millisecond).String()+")")
	}
	sort.Strings(out)
	return out
}
