//go:build linux

// File: client/driver_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client_test

import (
	"context"
	"errors"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/tcpecho/api"
	"github.com/momentics/tcpecho/client"
	"github.com/momentics/tcpecho/control"
	"github.com/momentics/tcpecho/fake"
	"github.com/momentics/tcpecho/server"
	"github.com/momentics/tcpecho/transport/tcp"
)

// startServer runs an echo server on loopback for the duration of the test.
func startServer(t *testing.T, opts ...server.ServerOption) tcp.Addr {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	logger, _ := test.NewNullLogger()
	opts = append([]server.ServerOption{server.WithLogger(logrus.NewEntry(logger))}, opts...)
	srv, err := server.NewServer(cfg, opts...)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	t.Cleanup(func() {
		_ = srv.Shutdown()
		<-done
	})
	return srv.Addr()
}

func configFor(addr tcp.Addr) *client.Config {
	cfg := client.DefaultConfig()
	cfg.Host = addr.IP().String()
	cfg.Port = addr.Port()
	cfg.PacketDelay = 10 * time.Millisecond
	cfg.RepeatDelay = 10 * time.Millisecond
	cfg.Timeout = time.Second
	return cfg
}

func TestEchoThreePackets(t *testing.T) {
	addr := startServer(t)
	cfg := configFor(addr)
	cfg.Packets = client.Finite(3)

	rec := fake.NewReporter()
	reg := prometheus.NewRegistry()
	metrics := control.NewClientMetrics(reg)
	d, err := client.NewDriver(cfg, client.WithReporter(rec), client.WithMetrics(metrics))
	require.NoError(t, err)

	res := d.RunOnce(context.Background(), 1)
	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Packets)
	assert.Len(t, res.RTTs, 3)

	packets := rec.Packets()
	require.Len(t, packets, 3)
	for i, p := range packets {
		assert.Equal(t, 1, p.Run)
		assert.Equal(t, i+1, p.Seq)
	}
	assert.Empty(t, rec.Failures())

	phases, ok := rec.PhasesOf(1)
	require.True(t, ok)
	assert.True(t, phases.Connected)

	s, ok := rec.SummaryOf(1)
	require.True(t, ok)
	assert.Equal(t, 3, s.Samples)
	assert.LessOrEqual(t, s.Min, s.Avg)
	assert.LessOrEqual(t, s.Avg, s.Max)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Packets.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues("ok")))
}

func TestSilentPeerTimesOut(t *testing.T) {
	peer, err := fake.NewPeer(fake.Silent)
	require.NoError(t, err)
	defer peer.Close()

	cfg := configFor(peer.Addr())
	cfg.Timeout = 100 * time.Millisecond
	rec := fake.NewReporter()
	d, err := client.NewDriver(cfg, client.WithReporter(rec))
	require.NoError(t, err)

	start := time.Now()
	res := d.RunOnce(context.Background(), 1)
	elapsed := time.Since(start)

	assert.ErrorIs(t, res.Err, api.ErrTimedOut)
	assert.Equal(t, 0, res.Packets)
	assert.Less(t, elapsed, time.Second)

	failures := rec.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Packet)
	_, ok := rec.SummaryOf(1)
	assert.False(t, ok, "no summary without samples")
}

func TestClosingPeerReportsPeerClosed(t *testing.T) {
	peer, err := fake.NewPeer(fake.Closing)
	require.NoError(t, err)
	defer peer.Close()

	d, err := client.NewDriver(configFor(peer.Addr()))
	require.NoError(t, err)
	res := d.RunOnce(context.Background(), 1)
	require.Error(t, res.Err)
	code := api.CodeOf(res.Err)
	// the write may race the peer's close and fail with a reset instead
	assert.Contains(t, []api.ErrorCode{api.CodePeerClosed, api.CodeIO}, code)
}

func TestMismatchAtInjectedOffset(t *testing.T) {
	const offset = 4
	addr := startServer(t, server.WithEchoFilter(func(chunk []byte) {
		if len(chunk) > offset {
			chunk[offset] ^= 0x20
		}
	}))
	cfg := configFor(addr)
	cfg.Packets = client.Finite(3)
	rec := fake.NewReporter()
	d, err := client.NewDriver(cfg, client.WithReporter(rec))
	require.NoError(t, err)

	res := d.RunOnce(context.Background(), 1)
	require.ErrorIs(t, res.Err, api.ErrDataMismatch)
	var mm *api.MismatchError
	require.True(t, errors.As(res.Err, &mm))
	assert.Equal(t, offset, mm.Offset())
	assert.Equal(t, []byte("hello world"), mm.Sent)
	assert.Equal(t, []byte("hellO world"), mm.Received)
	assert.Equal(t, 0, res.Packets, "mismatch aborts the run at the first packet")
}

func TestFailedRunDoesNotStopSchedule(t *testing.T) {
	// reserve a port, then free it so connecting is refused
	peer, err := fake.NewPeer(fake.Silent)
	require.NoError(t, err)
	addr := peer.Addr()
	require.NoError(t, peer.Close())

	cfg := configFor(addr)
	cfg.Repeats = client.Finite(3)
	rec := fake.NewReporter()
	d, err := client.NewDriver(cfg, client.WithReporter(rec))
	require.NoError(t, err)

	require.NoError(t, d.Run(context.Background()))
	failures := rec.Failures()
	require.Len(t, failures, 3)
	for i, f := range failures {
		assert.Equal(t, i+1, f.Run)
		assert.Equal(t, 0, f.Packet)
		assert.ErrorIs(t, f.Err, api.ErrConnectFailed)
		p, ok := rec.PhasesOf(i + 1)
		require.True(t, ok)
		assert.True(t, p.Connected, "connect phase completes even when it fails")
	}
}

type stubResolver struct {
	calls atomic.Int32
}

func (r *stubResolver) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	r.calls.Add(1)
	return nil, errors.New("no such host")
}

func TestResolutionFailureReportsOnlyResolvePhase(t *testing.T) {
	cfg := client.DefaultConfig()
	cfg.Host = "echo.invalid"
	cfg.Port = 9000
	res := &stubResolver{}
	rec := fake.NewReporter()
	d, err := client.NewDriver(cfg, client.WithReporter(rec), client.WithResolver(res))
	require.NoError(t, err)

	out := d.RunOnce(context.Background(), 7)
	assert.ErrorIs(t, out.Err, api.ErrResolution)
	assert.EqualValues(t, 1, res.calls.Load())
	p, ok := rec.PhasesOf(7)
	require.True(t, ok)
	assert.False(t, p.Connected)
}

func TestRunStopsOnCancel(t *testing.T) {
	addr := startServer(t)
	cfg := configFor(addr)
	cfg.Packets = client.Unbounded()
	cfg.PacketDelay = 20 * time.Millisecond

	rec := fake.NewReporter()
	d, err := client.NewDriver(cfg, client.WithReporter(rec))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	err = d.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, rec.Packets())
	assert.Empty(t, rec.Failures())
}
