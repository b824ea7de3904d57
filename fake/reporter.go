// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing: a recording report sink and misbehaving
// TCP peers with predictable, controllable behavior.

package fake

import (
	"sync"
	"time"

	"github.com/momentics/tcpecho/client"
)

// Packet is one recorded successful packet.
type Packet struct {
	Run, Seq int
	RTT      time.Duration
}

// Failure is one recorded aborted run.
type Failure struct {
	Run, Packet int
	Err         error
}

// Reporter records every report call for later assertions.
type Reporter struct {
	mu        sync.Mutex
	phases    map[int]client.Phases
	packets   []Packet
	failures  []Failure
	summaries map[int]client.Stats
}

// NewReporter creates an empty recording reporter.
func NewReporter() *Reporter {
	return &Reporter{
		phases:    make(map[int]client.Phases),
		summaries: make(map[int]client.Stats),
	}
}

func (r *Reporter) Phases(run int, p client.Phases) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases[run] = p
}

func (r *Reporter) PacketOK(run, packet int, rtt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packets = append(r.packets, Packet{Run: run, Seq: packet, RTT: rtt})
}

func (r *Reporter) Failure(run, packet int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, Failure{Run: run, Packet: packet, Err: err})
}

func (r *Reporter) Summary(run int, s client.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[run] = s
}

// PhasesOf returns the dial phases recorded for run.
func (r *Reporter) PhasesOf(run int) (client.Phases, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.phases[run]
	return p, ok
}

// Packets returns a copy of the recorded packets.
func (r *Reporter) Packets() []Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Packet(nil), r.packets...)
}

// Failures returns a copy of the recorded failures.
func (r *Reporter) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Failure(nil), r.failures...)
}

// SummaryOf returns the summary recorded for run.
func (r *Reporter) SummaryOf(run int) (client.Stats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.summaries[run]
	return s, ok
}

var _ client.Reporter = (*Reporter)(nil)
