package advertiser

import (
	"fmt"
	"regexp"

	"github.com/beaconmdns/beacon/internal/protocol"
)

// Service is the caller-facing description of one service instance to
// advertise, validated and converted to a records.ServiceRegistration
// before it reaches the interface advertiser (C7).
type Service struct {
	// InstanceName is the human-readable service instance name, e.g.
	// "My Printer". RFC 1035 §2.3.4: labels are 1-63 octets.
	InstanceName string

	// ServiceType is "_service._proto", e.g. "_http._tcp" (the "local"
	// suffix is implicit and must not be included here).
	ServiceType string

	// Subtypes is the set of DNS-SD subtype labels this instance also
	// answers under (RFC 6763 §7.1), e.g. "_printer".
	Subtypes []string

	// Port is the TCP/UDP port the service listens on.
	Port uint16

	// TXT is the service's key/value metadata (RFC 6763 §6). A nil or
	// empty map encodes as a single zero-length string.
	TXT map[string]string

	// TTL overrides the RFC 6762 §10 default TTLs for this instance's
	// positive records; zero uses the defaults.
	TTL uint32
}

var serviceTypePattern = regexp.MustCompile(`^_[A-Za-z0-9-]+\._(tcp|udp)$`)

// Validate checks a Service's fields against RFC 6762/6763 constraints
// before it is handed to the interface advertiser.
func (s Service) Validate() error {
	if s.InstanceName == "" {
		return fmt.Errorf("advertiser: instance name cannot be empty")
	}
	if len(s.InstanceName) > protocol.MaxLabelLength {
		return fmt.Errorf("advertiser: instance name exceeds %d octets (got %d)", protocol.MaxLabelLength, len(s.InstanceName))
	}
	if !serviceTypePattern.MatchString(s.ServiceType) {
		return fmt.Errorf("advertiser: service type %q must match _service._tcp or _service._udp", s.ServiceType)
	}
	if s.Port == 0 {
		return fmt.Errorf("advertiser: port must be non-zero")
	}
	for _, sub := range s.Subtypes {
		if sub == "" {
			return fmt.Errorf("advertiser: subtype label cannot be empty")
		}
	}
	if size := txtEncodedSize(s.TXT); size > protocol.MaxTXTRecordBytes {
		return fmt.Errorf("advertiser: TXT record exceeds %d bytes (got %d)", protocol.MaxTXTRecordBytes, size)
	}
	return nil
}

// txtEncodedSize estimates the wire size of TXT, one length byte per
// "key=value" string plus its contents.
func txtEncodedSize(txt map[string]string) int {
	if len(txt) == 0 {
		return 1
	}
	total := 0
	for k, v := range txt {
		total += 1 + len(k) + 1 + len(v)
	}
	return total
}
