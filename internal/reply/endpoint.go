// Package reply implements the reply sender (C6): packet serialization,
// multi-packet splitting on overflow, known-answer-driven reply
// coalescing, and destination resolution between the mDNS multicast
// groups and a querier's unicast source endpoint.
package reply

import (
	"net"

	"github.com/beaconmdns/beacon/internal/protocol"
)

// ResolveDestination picks the address a reply should be sent to, per
// RFC 6762 §6.1: if the question requested a unicast response (the QU
// bit) or the query did not arrive from the mDNS port, reply directly to
// the source; otherwise reply to the multicast group matching the
// source's address family.
func ResolveDestination(source *net.UDPAddr, qu bool) *net.UDPAddr {
	if qu || source.Port != protocol.Port {
		return source
	}
	if source.IP.To4() != nil {
		return protocol.MulticastGroupIPv4()
	}
	return protocol.MulticastGroupIPv6()
}
