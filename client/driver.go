// File: client/driver.go
// Package client implements the echo test driver: it connects to an echo
// server, sends a payload, verifies the echo and reports round-trip times.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"bytes"
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/momentics/tcpecho/api"
	"github.com/momentics/tcpecho/control"
	"github.com/momentics/tcpecho/core/deadline"
	"github.com/momentics/tcpecho/transport/tcp"
)

// RunResult is the outcome of one run.
type RunResult struct {
	Run     int
	Phases  Phases
	Packets int             // packets echoed back unchanged
	RTTs    []time.Duration // one per successful packet
	Err     error           // first failure; nil when every packet succeeded
}

// Option customizes a Driver.
type Option func(*Driver)

// WithReporter sets the receiver of report lines. The default discards them.
func WithReporter(r Reporter) Option {
	return func(d *Driver) { d.report = r }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *logrus.Entry) Option {
	return func(d *Driver) { d.log = log }
}

// WithMetrics sets the collectors updated per packet and per run.
func WithMetrics(m *control.ClientMetrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithResolver replaces the system resolver.
func WithResolver(r tcp.Resolver) Option {
	return func(d *Driver) { d.resolver = r }
}

// Driver runs an echo test schedule on the calling goroutine.
type Driver struct {
	cfg      *Config
	report   Reporter
	log      *logrus.Entry
	metrics  *control.ClientMetrics
	resolver tcp.Resolver
	window   *rttWindow
}

// NewDriver validates cfg and returns a driver for it.
func NewDriver(cfg *Config, opts ...Option) (*Driver, error) {
	if cfg == nil {
		return nil, api.Configurationf("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{cfg: cfg, window: newRTTWindow(DefaultWindow)}
	for _, opt := range opts {
		opt(d)
	}
	if d.report == nil {
		d.report = discard{}
	}
	if d.log == nil {
		d.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if d.metrics == nil {
		d.metrics = control.NewClientMetrics(nil)
	}
	return d, nil
}

// Run executes the whole schedule. A failed run never stops later runs; only
// cancellation of ctx does, between packets or runs, in which case ctx.Err()
// is returned.
func (d *Driver) Run(ctx context.Context) error {
	for run := 1; d.cfg.Repeats.Allows(run); run++ {
		if run > 1 {
			if err := sleep(ctx, d.cfg.RepeatDelay); err != nil {
				return err
			}
		}
		res := d.RunOnce(ctx, run)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if res.Err != nil {
			d.log.WithError(res.Err).WithField("run", run).Debug("run failed")
		}
	}
	return nil
}

// RunOnce performs one run numbered counter: dial, then exchange packets until
// the packet count is reached or the first failure.
func (d *Driver) RunOnce(ctx context.Context, counter int) RunResult {
	res := RunResult{Run: counter}
	sock, err := d.dial(ctx, &res.Phases)
	d.report.Phases(counter, res.Phases)
	if err != nil {
		res.Err = err
		d.fail(&res, 0)
		return res
	}
	defer sock.Close()

	recv := make([]byte, len(d.cfg.Payload))
	for i := 1; d.cfg.Packets.Allows(i); i++ {
		if i > 1 {
			if err := sleep(ctx, d.cfg.PacketDelay); err != nil {
				res.Err = err
				return res
			}
		}
		rtt, err := d.exchange(sock, recv)
		if err != nil {
			res.Err = err
			d.metrics.Packets.WithLabelValues(api.CodeOf(err).String()).Inc()
			d.fail(&res, i)
			return res
		}
		res.Packets++
		res.RTTs = append(res.RTTs, rtt)
		d.window.add(rtt)
		d.metrics.Packets.WithLabelValues(api.CodeOK.String()).Inc()
		d.metrics.RTT.Observe(rtt.Seconds())
		d.report.PacketOK(counter, i, rtt)
	}
	d.finish(&res)
	d.metrics.Runs.WithLabelValues(api.CodeOK.String()).Inc()
	return res
}

func (d *Driver) fail(res *RunResult, packet int) {
	d.report.Failure(res.Run, packet, res.Err)
	d.finish(res)
	d.metrics.Runs.WithLabelValues(api.CodeOf(res.Err).String()).Inc()
}

func (d *Driver) finish(res *RunResult) {
	if s := d.window.stats(); s.Samples > 0 && res.Packets > 0 {
		d.report.Summary(res.Run, s)
	}
}

// dial resolves and connects, timing each phase individually. Phases records
// whatever completed, also on failure.
func (d *Driver) dial(ctx context.Context, p *Phases) (*tcp.Socket, error) {
	start := deadline.Now()
	rctx, cancel := ctx, context.CancelFunc(func() {})
	if d.cfg.Timeout > 0 {
		rctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
	}
	addr, err := tcp.Resolve(rctx, d.resolver, d.cfg.Host, d.cfg.Port, d.cfg.Family)
	cancel()
	p.Resolve = deadline.Elapsed(start)
	d.metrics.Phase.WithLabelValues("resolv").Observe(p.Resolve.Seconds())
	if err != nil {
		return nil, err
	}

	start = deadline.Now()
	sock, err := tcp.Connect(addr, deadline.After(d.cfg.Timeout))
	p.Connect = deadline.Elapsed(start)
	p.Connected = true
	d.metrics.Phase.WithLabelValues("connect").Observe(p.Connect.Seconds())
	if err != nil {
		return nil, err
	}
	d.log.WithField("addr", addr.String()).Debug("connected")
	return sock, nil
}

// exchange writes the payload, reads the echo and compares it. The RTT runs
// from the start of the write to the completion of the read. Write and read
// each get their own deadline.
func (d *Driver) exchange(sock *tcp.Socket, recv []byte) (time.Duration, error) {
	start := deadline.Now()
	if _, err := sock.WriteAll(d.cfg.Payload, deadline.After(d.cfg.Timeout)); err != nil {
		return 0, err
	}
	if _, err := sock.ReadFull(recv, deadline.After(d.cfg.Timeout)); err != nil {
		return 0, err
	}
	rtt := deadline.Elapsed(start)
	if !bytes.Equal(recv, d.cfg.Payload) {
		return 0, &api.MismatchError{
			Sent:     append([]byte(nil), d.cfg.Payload...),
			Received: append([]byte(nil), recv...),
		}
	}
	return rtt, nil
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type discard struct{}

func (discard) Phases(int, Phases) {}
func (discard) PacketOK(int, int, time.Duration) {}
func (discard) Failure(int, int, error) {}
func (discard) Summary(int, Stats) {}
