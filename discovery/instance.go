// Package discovery implements the discovery/browse path: a Browser
// that consumes incoming DNS responses on the shared Socket facade (C9)
// and groups records by service instance per interface, the mirror
// image of the advertiser facade's record repository (C2) for the
// consuming side.
package discovery

import (
	"net"
	"time"
)

// ServiceInstance is the assembled view of one discovered service
// instance on one interface: the PTR names it, SRV gives its target host
// and port, TXT carries its attributes, and A/AAAA resolve its target
// host to addresses.
type ServiceInstance struct {
	// Name is the service instance name, e.g. "Office Printer".
	Name string

	// ServiceType is the two-to-three label service type, e.g. "_http._tcp".
	ServiceType string

	// Interface is the name of the network interface this instance was
	// observed on; the same instance can be discovered independently on
	// multiple interfaces and is tracked separately on each.
	Interface string

	// Host is the SRV target, e.g. "printer.local".
	Host string

	// Port is the SRV target port.
	Port uint16

	// Addresses are the resolved A/AAAA addresses for Host, if any have
	// been observed yet.
	Addresses []net.IP

	// TXT is the decoded key/value attribute set from the instance's TXT
	// record. A key with no "=" in its wire encoding (RFC 6763 §6.4
	// boolean attribute) maps to an empty string, as does "key=" with an
	// empty value.
	TXT map[string]string

	// expires is the latest expiry seen among this instance's records: a
	// PTR sets it outright, other record types only move it later.
	// Removal is driven by the timer armed from the PTR's TTL, not by
	// this field.
	expires time.Time

	// reported is set once this instance has had enough records (an SRV
	// target) to fire its first Added event, distinguishing later
	// changes as Updated.
	reported bool
}

// instanceKey identifies a ServiceInstance within one interface's table:
// case-folded per RFC 6762 §16 name comparison rules.
func instanceKey(name, serviceType string) string {
	return normalizeName(name) + "|" + normalizeName(serviceType)
}

func normalizeName(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}

// clone returns a deep-enough copy of inst safe to hand to a caller's
// event callback without aliasing the Browser's internal state.
func (inst ServiceInstance) clone() ServiceInstance {
	out := inst
	out.Addresses = append([]net.IP(nil), inst.Addresses...)
	out.TXT = make(map[string]string, len(inst.TXT))
	for k, v := range inst.TXT {
		out.TXT[k] = v
	}
	return out
}
