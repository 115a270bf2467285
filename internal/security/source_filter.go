// Package security provides security features including rate limiting
// and source IP validation for mDNS multicast traffic.
package security

import (
	"net"
)

// SourceFilter validates source IPs before parsing packets. Per RFC
// 6762 §2, mDNS is link-local scope: source IPs must be link-local
// (IPv4 169.254.0.0/16 per RFC 3927, or IPv6 fe80::/10) or on the same
// subnet as the receiving interface.
type SourceFilter struct {
	iface      net.Interface // Receiving interface
	ifaceAddrs []net.IPNet   // Cached interface addresses (avoids syscall per packet)
}

// NewSourceFilter creates a new source filter for the given interface.
// It caches the interface addresses to avoid syscalls in the hot path
// (per-packet validation).
func NewSourceFilter(iface net.Interface) (*SourceFilter, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		// If we can't get addresses, fall back to the link-local check only.
		return &SourceFilter{
			iface:      iface,
			ifaceAddrs: []net.IPNet{},
		}, nil
	}

	var ipnets []net.IPNet
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			ipnets = append(ipnets, *ipnet)
		}
	}

	return &SourceFilter{
		iface:      iface,
		ifaceAddrs: ipnets,
	}, nil
}

// IsValid checks whether srcIP is valid for mDNS traffic on this
// interface: link-local (either address family) or within one of the
// interface's own subnets. It rejects routed addresses from outside the
// link, which a genuine mDNS peer never sends from.
func (sf *SourceFilter) IsValid(srcIP net.IP) bool {
	if ip4 := srcIP.To4(); ip4 != nil {
		if ip4[0] == 169 && ip4[1] == 254 {
			return true // RFC 3927 IPv4 link-local
		}
	} else if srcIP.IsLinkLocalUnicast() {
		return true // fe80::/10 IPv6 link-local
	}

	for _, ipnet := range sf.ifaceAddrs {
		if ipnet.Contains(srcIP) {
			return true // same subnet as the receiving interface
		}
	}

	return false
}
