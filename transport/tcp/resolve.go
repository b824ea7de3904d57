//go:build unix

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"context"
	"net"
	"net/netip"
	"strconv"

	"github.com/pkg/errors"

	"github.com/momentics/tcpecho/api"
)

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Resolve turns host into a transport address of the preferred family. The
// first usable address wins. Literal IPs bypass the resolver. Failures are
// reported as api.ErrResolution.
func Resolve(ctx context.Context, r Resolver, host string, port uint16, family Family) (Addr, error) {
	op := "getaddrinfo " + host
	if ip, err := netip.ParseAddr(host); err == nil {
		ip = ip.Unmap()
		if !family.accepts(ip) {
			return Addr{}, api.NewError(api.CodeResolution, op,
				errors.Errorf("address %s does not match family %s", ip, family))
		}
		a, _ := AddrFrom(ip, port)
		return a, nil
	}

	if r == nil {
		r = net.DefaultResolver
	}
	ips, err := r.LookupNetIP(ctx, family.String(), host)
	if err != nil {
		return Addr{}, api.NewError(api.CodeResolution, op, err)
	}
	for _, ip := range ips {
		ip = ip.Unmap()
		if family.accepts(ip) {
			a, _ := AddrFrom(ip, port)
			return a, nil
		}
	}
	return Addr{}, api.NewError(api.CodeResolution, op,
		errors.Errorf("no %s address among %d results", family, len(ips)))
}

func (f Family) accepts(ip netip.Addr) bool {
	switch f {
	case FamilyIPv4:
		return ip.Is4()
	case FamilyIPv6:
		return ip.Is6()
	}
	return ip.Is4() || ip.Is6()
}

// zoneIndex maps an IPv6 zone (interface name or number) to its index.
func zoneIndex(zone string) (uint32, error) {
	if n, err := strconv.ParseUint(zone, 10, 32); err == nil {
		return uint32(n), nil
	}
	ifi, err := net.InterfaceByName(zone)
	if err != nil {
		return 0, err
	}
	return uint32(ifi.Index), nil
}
