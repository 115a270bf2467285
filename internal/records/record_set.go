package records

import (
	"net"
	"time"

	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/wire"
)

// HostRecords is the set of address records for the interface's host
// name, shared across every service registered on that interface.
type HostRecords struct {
	Hostname string // e.g. "MyHost.local"
	IPv4     net.IP
	IPv6     net.IP
}

// BuildRecordSet constructs the full RFC 6763 §6 record set for one
// service registration: the service-type PTR, instance SRV and TXT,
// any subtype PTRs, and (when includeAddress is true) the shared host
// A/AAAA/NSEC records. includeAddress is normally true only for the
// first active service on an interface, since address records are
// shared rather than duplicated per service.
func BuildRecordSet(reg ServiceRegistration, host HostRecords, includeAddress bool) []wire.ResourceRecord {
	instance := instanceFQDN(reg.InstanceName, reg.ServiceType)
	svcType := fqServiceType(reg.ServiceType)

	var out []wire.ResourceRecord

	out = append(out, wire.ResourceRecord{
		Name:       svcType,
		Class:      protocol.ClassIN,
		TTL:        secs(ttlFor(protocol.RecordTypePTR, reg.TTLOverride)),
		CacheFlush: false, // shared record: RFC 6762 §10.2 forbids the cache-flush bit
		Data:       wire.PTRData{Target: instance},
	})

	for _, sub := range reg.Subtypes {
		out = append(out, wire.ResourceRecord{
			Name:       sub + "._sub." + svcType,
			Class:      protocol.ClassIN,
			TTL:        secs(ttlFor(protocol.RecordTypePTR, reg.TTLOverride)),
			CacheFlush: false,
			Data:       wire.PTRData{Target: instance},
		})
	}

	out = append(out, wire.ResourceRecord{
		Name:       instance,
		Class:      protocol.ClassIN,
		TTL:        secs(ttlFor(protocol.RecordTypeSRV, reg.TTLOverride)),
		CacheFlush: true,
		Data: wire.SRVData{
			Priority: 0,
			Weight:   0,
			Port:     reg.Port,
			Target:   host.Hostname,
		},
	})

	out = append(out, wire.ResourceRecord{
		Name:       instance,
		Class:      protocol.ClassIN,
		TTL:        secs(ttlFor(protocol.RecordTypeTXT, reg.TTLOverride)),
		CacheFlush: true,
		Data:       wire.TXTData{Strings: encodeTXTStrings(reg.TXT)},
	})

	if includeAddress {
		out = append(out, BuildHostAddressRecords(host)...)
	}

	return out
}

// BuildHostAddressRecords returns the shared A/AAAA/NSEC triple for an
// interface's host name. NSEC asserts which of A and AAAA exist at this
// name, per RFC 6762 §6.1's negative-response-by-assertion requirement.
func BuildHostAddressRecords(host HostRecords) []wire.ResourceRecord {
	var out []wire.ResourceRecord
	var present []protocol.RecordType

	if v4 := host.IPv4.To4(); v4 != nil {
		var addr [4]byte
		copy(addr[:], v4)
		out = append(out, wire.ResourceRecord{
			Name:       host.Hostname,
			Class:      protocol.ClassIN,
			TTL:        secs(protocol.TTLHostnameSeconds),
			CacheFlush: true,
			Data:       wire.AData{Addr: addr},
		})
		present = append(present, protocol.RecordTypeA)
	}

	if v6 := host.IPv6.To16(); v6 != nil && host.IPv6.To4() == nil {
		var addr [16]byte
		copy(addr[:], v6)
		out = append(out, wire.ResourceRecord{
			Name:       host.Hostname,
			Class:      protocol.ClassIN,
			TTL:        secs(protocol.TTLHostnameSeconds),
			CacheFlush: true,
			Data:       wire.AAAAData{Addr: addr},
		})
		present = append(present, protocol.RecordTypeAAAA)
	}

	if len(present) > 0 {
		out = append(out, wire.ResourceRecord{
			Name:       host.Hostname,
			Class:      protocol.ClassIN,
			TTL:        secs(protocol.TTLHostnameSeconds),
			CacheFlush: true,
			Data:       wire.NSECData{NextDomain: host.Hostname, Types: present},
		})
	}

	return out
}

// BuildReversePTR returns the PTR record mapping an address's
// in-addr.arpa/ip6.arpa name back to the host name, enabling reverse
// address-to-name lookups against the same hostname this advertiser
// already serves.
func BuildReversePTR(host HostRecords, ip net.IP) (wire.ResourceRecord, bool) {
	arpa, ok := reverseName(ip)
	if !ok {
		return wire.ResourceRecord{}, false
	}
	return wire.ResourceRecord{
		Name:       arpa,
		Class:      protocol.ClassIN,
		TTL:        secs(protocol.TTLHostnameSeconds),
		CacheFlush: true,
		Data:       wire.PTRData{Target: host.Hostname},
	}, true
}

func encodeTXTStrings(txt map[string]string) []string {
	if len(txt) == 0 {
		return nil // wire.TXTData with no Strings encodes as a single empty string
	}
	out := make([]string, 0, len(txt))
	for k, v := range txt {
		if v == "" {
			out = append(out, k)
			continue
		}
		out = append(out, k+"="+v)
	}
	return out
}

func reverseName(ip net.IP) (string, bool) {
	if v4 := ip.To4(); v4 != nil {
		return net.IPv4(v4[3], v4[2], v4[1], v4[0]).String() + ".in-addr.arpa", true
	}
	if v6 := ip.To16(); v6 != nil {
		const hexDigits = "0123456789abcdef"
		name := make([]byte, 0, len(v6)*4)
		for i := len(v6) - 1; i >= 0; i-- {
			b := v6[i]
			name = append(name, hexDigits[b&0x0f], '.', hexDigits[b>>4], '.')
		}
		return string(name) + "ip6.arpa", true
	}
	return "", false
}

func secs(n uint32) time.Duration {
	return time.Duration(n) * time.Second
}
