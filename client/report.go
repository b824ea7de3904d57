// File: client/report.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/momentics/tcpecho/api"
)

// Phases holds the timing of the dial phases of one run. Only completed
// phases are reported: Connected is false when resolution failed.
type Phases struct {
	Resolve   time.Duration
	Connect   time.Duration
	Connected bool
}

// Reporter receives the user-visible outcome of every step of a schedule.
// Calls come from the goroutine running the driver.
type Reporter interface {
	// Phases is called once per run after dialing, whatever the outcome.
	Phases(run int, p Phases)
	// PacketOK is called for every packet echoed back unchanged.
	PacketOK(run, packet int, rtt time.Duration)
	// Failure is called when a run aborts. packet is 0 for dial failures.
	Failure(run, packet int, err error)
	// Summary is called after each run that has at least one RTT sample.
	Summary(run int, s Stats)
}

// TextReporter writes the classic line-oriented report: progress on Out,
// diagnostics on Err.
type TextReporter struct {
	Out io.Writer
	Err io.Writer

	mu sync.Mutex
}

// NewTextReporter returns a reporter writing to out and errw.
func NewTextReporter(out, errw io.Writer) *TextReporter {
	return &TextReporter{Out: out, Err: errw}
}

func millis(d time.Duration) int64 {
	return d.Milliseconds()
}

func (r *TextReporter) Phases(run int, p Phases) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Connected {
		fmt.Fprintf(r.Out, "%d resolv %dms, %d connect %dms\n", run, millis(p.Resolve), run, millis(p.Connect))
		return
	}
	fmt.Fprintf(r.Out, "%d resolv %dms\n", run, millis(p.Resolve))
}

func (r *TextReporter) PacketOK(run, packet int, rtt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.Out, "  %d.%d echo test ok, rtt=%dms\n", run, packet, millis(rtt))
}

func (r *TextReporter) Failure(run, packet int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if packet > 0 {
		fmt.Fprintf(r.Err, "%d.%d %v\n", run, packet, err)
	} else {
		fmt.Fprintf(r.Err, "%d %v\n", run, err)
	}
	var mm *api.MismatchError
	if errors.As(err, &mm) {
		_, _ = io.WriteString(r.Err, HexLine("TX", mm.Sent))
		_, _ = io.WriteString(r.Err, HexLine("RX", mm.Received))
	}
}

func (r *TextReporter) Summary(run int, s Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.Out, "%d rtt min/avg/max = %.3f/%.3f/%.3f ms (%d samples)\n", run,
		fmtMillis(s.Min), fmtMillis(s.Avg), fmtMillis(s.Max), s.Samples)
}

func fmtMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// HexLine renders data as "label: 68 65 6c \n", two lowercase hex digits and a
// space per byte.
func HexLine(label string, data []byte) string {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	_, _ = bb.WriteString(label)
	_, _ = bb.WriteString(": ")
	var tmp [3]byte
	for _, b := range data {
		h := strconv.AppendUint(tmp[:0], uint64(b), 16)
		if len(h) == 1 {
			_ = bb.WriteByte('0')
		}
		_, _ = bb.Write(h)
		_ = bb.WriteByte(' ')
	}
	_ = bb.WriteByte('\n')
	return bb.String()
}
