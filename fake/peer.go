//go:build unix

// Author: momentics <momentics@gmail.com>

package fake

import (
	"sync"
	"time"

	"github.com/momentics/tcpecho/core/deadline"
	"github.com/momentics/tcpecho/transport/tcp"
)

// PeerMode selects how a Peer treats accepted connections.
type PeerMode int

const (
	// Silent accepts and holds connections open without reading or writing.
	Silent PeerMode = iota
	// Closing accepts and immediately closes every connection.
	Closing
)

// Peer is a loopback TCP endpoint that misbehaves in a controlled way.
type Peer struct {
	ln   *tcp.Listener
	mode PeerMode

	mu    sync.Mutex
	conns []*tcp.Socket

	stop chan struct{}
	done chan struct{}
}

// NewPeer starts a peer on an ephemeral loopback port.
func NewPeer(mode PeerMode) (*Peer, error) {
	addr, err := tcp.ParseAddr("127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	ln, err := tcp.Listen(addr, 0)
	if err != nil {
		return nil, err
	}
	p := &Peer{ln: ln, mode: mode, stop: make(chan struct{}), done: make(chan struct{})}
	go p.loop()
	return p, nil
}

// Addr returns the address clients should dial.
func (p *Peer) Addr() tcp.Addr { return p.ln.Addr() }

// Accepted returns the number of connections accepted so far.
func (p *Peer) Accepted() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

func (p *Peer) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		default:
		}
		sock, _, err := p.ln.AcceptWait(deadline.After(20 * time.Millisecond))
		if err != nil {
			continue
		}
		if p.mode == Closing {
			_ = sock.Close()
		}
		p.mu.Lock()
		p.conns = append(p.conns, sock)
		p.mu.Unlock()
	}
}

// Close stops accepting and closes every held connection.
func (p *Peer) Close() error {
	close(p.stop)
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.conns {
		_ = c.Close()
	}
	return p.ln.Close()
}
