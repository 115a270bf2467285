// Package records implements the record repository (C2): it owns the
// authoritative set of local records per interface advertiser, builds
// the RFC 6763 §6 record set for each registered service, answers
// incoming questions with known-answer suppression, and detects and
// resolves name conflicts.
package records

import (
	"github.com/beaconmdns/beacon/internal/protocol"
)

// Status is a service registration's lifecycle state per the record
// repository's state model.
type Status int

const (
	StatusAdding Status = iota
	StatusProbing
	StatusProbed
	StatusAnnouncing
	StatusActive
	StatusExiting
	StatusRemoved
)

func (s Status) String() string {
	switch s {
	case StatusAdding:
		return "adding"
	case StatusProbing:
		return "probing"
	case StatusProbed:
		return "probed"
	case StatusAnnouncing:
		return "announcing"
	case StatusActive:
		return "active"
	case StatusExiting:
		return "exiting"
	case StatusRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ServiceRegistration is the caller-supplied description of one service
// instance to advertise.
type ServiceRegistration struct {
	// InstanceName is the human label, e.g. "My Printer". It is mutated
	// in place by rename-on-conflict before the first probe.
	InstanceName string

	// ServiceType is the two-to-three label sequence ending in _udp or
	// _tcp, e.g. "_http._tcp" (the "local" suffix is implicit).
	ServiceType string

	// Subtypes is the set of DNS-SD subtype labels this instance also
	// answers under (may be empty).
	Subtypes []string

	// Port is the TCP/UDP port the service listens on.
	Port uint16

	// TXT is the set of key/value pairs encoded into the TXT record.
	// A nil or empty map encodes as a single zero-length string.
	TXT map[string]string

	// TTLOverride, if non-zero, overrides the RFC 6762 §10 default TTLs
	// for this registration's positive records.
	TTLOverride uint32 // seconds; 0 means "use RFC defaults"
}

// serviceEntry is the repository's internal bookkeeping for one
// registration: the caller-visible ServiceRegistration plus lifecycle
// state.
type serviceEntry struct {
	reg           ServiceRegistration
	status        Status
	renameAttempt int
}

// fqServiceType returns the registration's service type fully qualified
// under "local", e.g. "_http._tcp.local".
func fqServiceType(serviceType string) string {
	return serviceType + ".local"
}

// instanceFQDN returns the fully-qualified instance name for a
// registration, e.g. "My Printer._http._tcp.local".
func instanceFQDN(instanceName, serviceType string) string {
	return instanceName + "." + fqServiceType(serviceType)
}

// Equivalent reports whether two registrations are identical aside from
// their Subtypes and TTLOverride, the only fields an update may change
// without being rejected: everything else about an in-place update must
// match the original registration exactly.
func Equivalent(a, b ServiceRegistration) bool {
	if a.InstanceName != b.InstanceName || a.ServiceType != b.ServiceType || a.Port != b.Port {
		return false
	}
	if len(a.TXT) != len(b.TXT) {
		return false
	}
	for k, v := range a.TXT {
		if bv, ok := b.TXT[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// ttlFor returns the TTL in seconds to use for a record type, honoring a
// per-service override for positive records.
func ttlFor(rt protocol.RecordType, override uint32) uint32 {
	if override != 0 {
		return override
	}
	switch rt {
	case protocol.RecordTypePTR, protocol.RecordTypeTXT:
		return protocol.TTLSharedSeconds
	default:
		return protocol.TTLHostnameSeconds
	}
}
