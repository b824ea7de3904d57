//go:build unix

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"
)

// Family is the address-family preference used for resolution.
type Family int

const (
	FamilyAuto Family = iota
	FamilyIPv4
	FamilyIPv6
)

// String returns the Go resolver network name for the family.
func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ip4"
	case FamilyIPv6:
		return "ip6"
	}
	return "ip"
}

// Addr is a transport address: either an IPv4 or an IPv6 address plus port.
// Exactly one variant is active; IPv4-mapped IPv6 addresses are stored as
// IPv4 so the variant always matches the socket family.
type Addr struct {
	ap netip.AddrPort
}

// AddrFrom builds an Addr from an IP and a port. It reports false for an
// invalid IP.
func AddrFrom(ip netip.Addr, port uint16) (Addr, bool) {
	if !ip.IsValid() {
		return Addr{}, false
	}
	return Addr{ap: netip.AddrPortFrom(ip.Unmap(), port)}, true
}

// ParseAddr parses "host:port" with a literal IP host.
func ParseAddr(s string) (Addr, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Addr{}, err
	}
	a, _ := AddrFrom(ap.Addr(), ap.Port())
	return a, nil
}

// IsValid reports whether a variant is set.
func (a Addr) IsValid() bool { return a.ap.IsValid() }

// Is4 reports whether the IPv4 variant is active.
func (a Addr) Is4() bool { return a.ap.Addr().Is4() }

// Is6 reports whether the IPv6 variant is active.
func (a Addr) Is6() bool { return a.ap.Addr().Is6() }

// IP returns the address bytes.
func (a Addr) IP() netip.Addr { return a.ap.Addr() }

// Port returns the port.
func (a Addr) Port() uint16 { return a.ap.Port() }

// AddrPort returns the address as a netip.AddrPort.
func (a Addr) AddrPort() netip.AddrPort { return a.ap }

// String formats the address as host:port ("[v6]:port" for IPv6).
func (a Addr) String() string {
	if !a.IsValid() {
		return "invalid"
	}
	return a.ap.String()
}

// Domain returns the socket domain (AF_INET or AF_INET6) for the active variant.
func (a Addr) Domain() int {
	if a.Is4() {
		return unix.AF_INET
	}
	return unix.AF_INET6
}

// Sockaddr converts the address to the matching unix.Sockaddr variant.
func (a Addr) Sockaddr() (unix.Sockaddr, error) {
	switch {
	case a.Is4():
		return &unix.SockaddrInet4{Port: int(a.Port()), Addr: a.IP().As4()}, nil
	case a.Is6():
		sa := &unix.SockaddrInet6{Port: int(a.Port()), Addr: a.IP().As16()}
		if zone := a.IP().Zone(); zone != "" {
			if id, err := zoneIndex(zone); err == nil {
				sa.ZoneId = id
			}
		}
		return sa, nil
	}
	return nil, fmt.Errorf("tcp: invalid transport address")
}

// addrFromSockaddr converts a kernel-reported address back into an Addr.
func addrFromSockaddr(sa unix.Sockaddr) (Addr, error) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		a, _ := AddrFrom(netip.AddrFrom4(v.Addr), uint16(v.Port))
		return a, nil
	case *unix.SockaddrInet6:
		a, _ := AddrFrom(netip.AddrFrom16(v.Addr), uint16(v.Port))
		return a, nil
	}
	return Addr{}, fmt.Errorf("tcp: unsupported socket address %T", sa)
}
