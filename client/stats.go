// File: client/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"time"

	"github.com/eapache/queue"
)

// DefaultWindow is the number of RTT samples kept for the rolling summary.
const DefaultWindow = 64

// Stats summarizes the RTT samples currently in the window.
type Stats struct {
	Min, Avg, Max time.Duration
	Samples       int
}

// rttWindow keeps the most recent RTT samples across runs.
type rttWindow struct {
	q    *queue.Queue
	size int
}

func newRTTWindow(size int) *rttWindow {
	if size <= 0 {
		size = DefaultWindow
	}
	return &rttWindow{q: queue.New(), size: size}
}

func (w *rttWindow) add(rtt time.Duration) {
	if w.q.Length() == w.size {
		w.q.Remove()
	}
	w.q.Add(rtt)
}

func (w *rttWindow) stats() Stats {
	n := w.q.Length()
	if n == 0 {
		return Stats{}
	}
	var sum time.Duration
	s := Stats{Samples: n}
	for i := 0; i < n; i++ {
		rtt := w.q.Get(i).(time.Duration)
		sum += rtt
		if i == 0 || rtt < s.Min {
			s.Min = rtt
		}
		if rtt > s.Max {
			s.Max = rtt
		}
	}
	s.Avg = sum / time.Duration(n)
	return s
}
