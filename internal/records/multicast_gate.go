package records

import (
	"fmt"

	"github.com/beaconmdns/beacon/internal/clock"
	"github.com/beaconmdns/beacon/internal/wire"
)

// MulticastGate tracks, per record and per interface, the last time a
// record was multicast, so the advertiser can honor the RFC 6762 §6.2
// rate limit: a given resource record must not be multicast again on a
// given interface until at least one second has elapsed, except when
// defending a name against a probe, which relaxes the limit to 250ms.
type MulticastGate struct {
	clk  clock.Clock
	last map[string]int64 // record key + interface -> UnixNano of last multicast
}

// NewMulticastGate returns a gate using clk to read the current time.
func NewMulticastGate(clk clock.Clock) *MulticastGate {
	return &MulticastGate{clk: clk, last: make(map[string]int64)}
}

// CanMulticast reports whether rr may be multicast on interfaceID right
// now under the standard one-second rate limit.
func (g *MulticastGate) CanMulticast(rr wire.ResourceRecord, interfaceID string) bool {
	return g.elapsedSince(rr, interfaceID) >= 1_000_000_000
}

// CanMulticastForProbeDefense reports whether rr may be multicast under
// the relaxed 250ms limit that applies when defending against a probe.
func (g *MulticastGate) CanMulticastForProbeDefense(rr wire.ResourceRecord, interfaceID string) bool {
	return g.elapsedSince(rr, interfaceID) >= 250_000_000
}

// RecordMulticast marks rr as having just been multicast on
// interfaceID, resetting both rate-limit windows.
func (g *MulticastGate) RecordMulticast(rr wire.ResourceRecord, interfaceID string) {
	g.last[recordKey(rr, interfaceID)] = g.clk.Now().UnixNano()
}

func (g *MulticastGate) elapsedSince(rr wire.ResourceRecord, interfaceID string) int64 {
	last, ok := g.last[recordKey(rr, interfaceID)]
	if !ok {
		return 1 << 62 // never sent: treat as arbitrarily long ago
	}
	return g.clk.Now().UnixNano() - last
}

// recordKey identifies a record for rate-limiting purposes: name, type,
// class and rdata (its Go value formatted with %v), deliberately
// excluding TTL since a refreshed
// TTL does not make it a different record.
func recordKey(rr wire.ResourceRecord, interfaceID string) string {
	return fmt.Sprintf("%s:%d:%d:%v:%s", rr.Name, rr.Type(), rr.Class, rr.Data, interfaceID)
}
