//go:build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sys/unix"

	"github.com/momentics/tcpecho/api"
	"github.com/momentics/tcpecho/core/deadline"
)

func loopback(t *testing.T) *Listener {
	t.Helper()
	addr, err := ParseAddr("127.0.0.1:0")
	require.NoError(t, err)
	l, err := Listen(addr, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// pair returns a connected client/server socket pair over loopback TCP.
func pair(t *testing.T) (*Socket, *Socket) {
	t.Helper()
	l := loopback(t)
	c, err := Connect(l.Addr(), deadline.After(time.Second))
	require.NoError(t, err)
	s, _, err := l.AcceptWait(deadline.After(time.Second))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
		_ = s.Close()
	})
	return c, s
}

func TestAddrVariants(t *testing.T) {
	a, ok := AddrFrom(netip.MustParseAddr("::ffff:10.1.2.3"), 80)
	require.True(t, ok)
	assert.True(t, a.Is4(), "v4-mapped must unmap to the IPv4 variant")
	assert.False(t, a.Is6())
	assert.Equal(t, unix.AF_INET, a.Domain())
	assert.Equal(t, "10.1.2.3:80", a.String())
	sa, err := a.Sockaddr()
	require.NoError(t, err)
	assert.IsType(t, &unix.SockaddrInet4{}, sa)

	b, err := ParseAddr("[::1]:9000")
	require.NoError(t, err)
	assert.True(t, b.Is6())
	assert.Equal(t, unix.AF_INET6, b.Domain())
	sa, err = b.Sockaddr()
	require.NoError(t, err)
	assert.Equal(t, 9000, sa.(*unix.SockaddrInet6).Port)

	_, ok = AddrFrom(netip.Addr{}, 1)
	assert.False(t, ok)
	_, err = Addr{}.Sockaddr()
	assert.Error(t, err)
}

type stubResolver struct {
	ips     []netip.Addr
	err     error
	network string
}

func (r *stubResolver) LookupNetIP(_ context.Context, network, _ string) ([]netip.Addr, error) {
	r.network = network
	return r.ips, r.err
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	a, err := Resolve(ctx, nil, "127.0.0.1", 7, FamilyAuto)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7", a.String())

	_, err = Resolve(ctx, nil, "::1", 7, FamilyIPv4)
	assert.True(t, errors.Is(err, api.ErrResolution))

	r := &stubResolver{ips: []netip.Addr{netip.MustParseAddr("2001:db8::1"), netip.MustParseAddr("192.0.2.1")}}
	a, err = Resolve(ctx, r, "echo.example", 9, FamilyIPv4)
	require.NoError(t, err)
	assert.Equal(t, "ip4", r.network)
	assert.Equal(t, "192.0.2.1:9", a.String())

	a, err = Resolve(ctx, r, "echo.example", 9, FamilyAuto)
	require.NoError(t, err)
	assert.True(t, a.Is6())

	r = &stubResolver{err: errors.New("no such host")}
	_, err = Resolve(ctx, r, "nowhere.invalid", 9, FamilyAuto)
	assert.True(t, errors.Is(err, api.ErrResolution))
	assert.Contains(t, err.Error(), "getaddrinfo nowhere.invalid")

	r = &stubResolver{ips: []netip.Addr{netip.MustParseAddr("192.0.2.1")}}
	_, err = Resolve(ctx, r, "v4only.example", 9, FamilyIPv6)
	assert.True(t, errors.Is(err, api.ErrResolution))
}

func TestSocketCloseOnce(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])
	s, err := NewSocketFromFD(fds[0])
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.True(t, s.Closed())
	assert.Equal(t, -1, s.Fd())

	_, err = s.WriteAll([]byte("x"), deadline.Unbounded())
	assert.True(t, errors.Is(err, api.ErrClosed))
}

type TransferSuite struct {
	suite.Suite
	client *Socket
	server *Socket
}

func (s *TransferSuite) SetupTest() {
	s.client, s.server = pair(s.T())
}

func (s *TransferSuite) TestRoundTripAllSizes() {
	buf := make([]byte, 1024)
	for size := 1; size <= 1024; size += 73 {
		payload := bytes.Repeat([]byte{byte(size)}, size)
		n, err := s.client.WriteAll(payload, deadline.After(time.Second))
		s.Require().NoError(err)
		s.Equal(size, n)

		n, err = s.server.ReadFull(buf[:size], deadline.After(time.Second))
		s.Require().NoError(err)
		s.Equal(payload, buf[:n])
	}
}

func (s *TransferSuite) TestReadWithoutDataTimesOut() {
	buf := make([]byte, 8)
	start := time.Now()
	n, err := s.client.ReadFull(buf, deadline.After(80*time.Millisecond))
	s.True(errors.Is(err, api.ErrTimedOut), "got %v", err)
	s.Equal(0, n)
	s.Less(time.Since(start), time.Second)
}

func (s *TransferSuite) TestPartialReadThenTimeout() {
	_, err := s.server.WriteAll([]byte("abc"), deadline.After(time.Second))
	s.Require().NoError(err)
	buf := make([]byte, 6)
	n, err := s.client.ReadFull(buf, deadline.After(80*time.Millisecond))
	s.True(errors.Is(err, api.ErrTimedOut))
	s.Equal(3, n)
	s.Equal("abc", string(buf[:n]))
}

func (s *TransferSuite) TestPeerClosedIsDistinct() {
	s.Require().NoError(s.server.Close())
	buf := make([]byte, 4)
	_, err := s.client.ReadFull(buf, deadline.After(time.Second))
	s.True(errors.Is(err, api.ErrPeerClosed), "got %v", err)
	s.False(errors.Is(err, api.ErrIO))
}

func (s *TransferSuite) TestWriteAllIsAllOrError() {
	// Nobody reads on the server side: the send and receive buffers fill up.
	big := make([]byte, 64<<20)
	n, err := s.client.WriteAll(big, deadline.After(100*time.Millisecond))
	s.True(errors.Is(err, api.ErrTimedOut), "got %v", err)
	s.Less(n, len(big))
}

func (s *TransferSuite) TestReadOnceAndWriteOnce() {
	buf := make([]byte, 16)
	_, err := s.server.ReadOnce(buf)
	s.Equal(api.ErrWouldBlock, err)

	n, err := s.client.WriteOnce([]byte("ping"))
	s.Require().NoError(err)
	s.Equal(4, n)

	s.Eventually(func() bool {
		n, err = s.server.ReadOnce(buf)
		return err == nil
	}, time.Second, 5*time.Millisecond)
	s.Equal("ping", string(buf[:n]))

	s.Require().NoError(s.client.ShutdownWrite())
	s.Eventually(func() bool {
		_, err = s.server.ReadOnce(buf)
		return errors.Is(err, api.ErrPeerClosed)
	}, time.Second, 5*time.Millisecond)
}

func TestTransferSuite(t *testing.T) {
	suite.Run(t, new(TransferSuite))
}

func TestConnectRefused(t *testing.T) {
	l := loopback(t)
	addr := l.Addr()
	require.NoError(t, l.Close())

	start := time.Now()
	s, err := Connect(addr, deadline.After(time.Second))
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, api.ErrConnectFailed), "got %v", err)
	assert.True(t, errors.Is(err, unix.ECONNREFUSED))
	assert.Less(t, time.Since(start), time.Second)
}

func TestConnectBoundedByTimeout(t *testing.T) {
	// A non-routable TEST-NET address: depending on the sandbox the attempt
	// either hangs until the deadline or fails fast. Either way it must not
	// outlive the timeout by much.
	addr, err := ParseAddr("192.0.2.1:9")
	require.NoError(t, err)
	start := time.Now()
	s, err := Connect(addr, deadline.After(150*time.Millisecond))
	assert.Nil(t, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrConnectTimedOut) || errors.Is(err, api.ErrConnectFailed), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestListenerAddrAndAcceptTimeout(t *testing.T) {
	l := loopback(t)
	assert.True(t, l.Addr().Is4())
	assert.NotZero(t, l.Addr().Port())

	_, _, err := l.Accept()
	assert.Equal(t, api.ErrWouldBlock, err)

	_, _, err = l.AcceptWait(deadline.After(30 * time.Millisecond))
	assert.True(t, errors.Is(err, api.ErrTimedOut))
}

func TestAcceptReportsPeer(t *testing.T) {
	l := loopback(t)
	c, err := Connect(l.Addr(), deadline.After(time.Second))
	require.NoError(t, err)
	defer c.Close()

	s, peer, err := l.AcceptWait(deadline.After(time.Second))
	require.NoError(t, err)
	defer s.Close()

	local, err := c.LocalAddr()
	require.NoError(t, err)
	assert.Equal(t, local, peer)

	remote, err := c.PeerAddr()
	require.NoError(t, err)
	assert.Equal(t, l.Addr(), remote)
}
