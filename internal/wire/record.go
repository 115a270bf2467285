package wire

import (
	"time"

	"github.com/beaconmdns/beacon/internal/protocol"
)

// RData is the tagged-variant payload carried by a ResourceRecord. Each
// concrete type below corresponds to one record type the repository
// serves; Opaque covers everything else, decoded for forward
// compatibility but never produced by the encoder.
type RData interface {
	// Type returns the record type this payload encodes.
	Type() protocol.RecordType
}

// PTRData is the payload of a PTR record: a single compressed name.
type PTRData struct {
	Target string
}

func (PTRData) Type() protocol.RecordType { return protocol.RecordTypePTR }

// SRVData is the payload of an SRV record per RFC 2782.
type SRVData struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

func (SRVData) Type() protocol.RecordType { return protocol.RecordTypeSRV }

// TXTData is the payload of a TXT record: a sequence of length-prefixed
// strings. An empty TXT record is represented as a single empty string,
// which the encoder writes as a single zero-length string per RFC 6763 §6.1.
type TXTData struct {
	Strings []string
}

func (TXTData) Type() protocol.RecordType { return protocol.RecordTypeTXT }

// AData is the payload of an A record: an IPv4 address.
type AData struct {
	Addr [4]byte
}

func (AData) Type() protocol.RecordType { return protocol.RecordTypeA }

// AAAAData is the payload of an AAAA record: an IPv6 address.
type AAAAData struct {
	Addr [16]byte
}

func (AAAAData) Type() protocol.RecordType { return protocol.RecordTypeAAAA }

// NSECData is the payload of an NSEC record per RFC 4034 §4. mDNS
// responses use only window block 0 in practice, since the served type
// numbers are all below 256; the codec reads and writes any window.
type NSECData struct {
	// NextDomain is the "next domain name" field; in mDNS's use of NSEC
	// for negative responses this is conventionally the owner name itself.
	NextDomain string

	// Types is the set of record types asserted present for the owner name.
	Types []protocol.RecordType
}

func (NSECData) Type() protocol.RecordType { return protocol.RecordTypeNSEC }

// OpaqueData is the payload for any record type the repository does not
// model explicitly. The decoder stores only the rdata length (the bytes
// themselves are not retained) since the repository never needs to
// interpret or re-emit them; it exists so unknown types don't abort
// parsing of the rest of the message.
type OpaqueData struct {
	WireType protocol.RecordType
	Length   int
}

func (o OpaqueData) Type() protocol.RecordType { return o.WireType }

// ResourceRecord is a decoded or to-be-encoded DNS resource record,
// carrying the fields common to every record type plus its type-specific
// RData.
type ResourceRecord struct {
	// Name is the owner name, e.g. "Printer._http._tcp.local".
	Name string

	// Class is almost always ClassIN; CacheFlush is tracked separately
	// rather than folded into Class so callers don't need to mask it out.
	Class protocol.DNSClass

	// TTL is the record's time-to-live. The wire format carries TTL in
	// whole seconds; this field is the decoded/target duration so the
	// repository can reason about remaining lifetime without repeated
	// unit conversion.
	TTL time.Duration

	// CacheFlush is RFC 6762 §10.2's cache-flush bit: true for unique
	// records (A/AAAA/SRV/TXT, reverse PTR), false for shared records
	// (the service-type-to-instance PTR).
	CacheFlush bool

	// Received is the time an inbound record was decoded; zero for
	// records being encoded for transmission.
	Received time.Time

	// Data is the type-specific payload.
	Data RData
}

// Type returns the record's wire type, read off its RData.
func (r ResourceRecord) Type() protocol.RecordType {
	if r.Data == nil {
		return 0
	}
	return r.Data.Type()
}

// IsExpired reports whether the record's TTL has elapsed since it was
// received, as of now. Records being encoded (Received is zero) are
// never considered expired.
func (r ResourceRecord) IsExpired(now time.Time) bool {
	if r.Received.IsZero() {
		return false
	}
	return now.After(r.Received.Add(r.TTL))
}

// RemainingTTL returns how much of the record's TTL is left as of now,
// floored at zero.
func (r ResourceRecord) RemainingTTL(now time.Time) time.Duration {
	if r.Received.IsZero() {
		return r.TTL
	}
	remaining := r.TTL - now.Sub(r.Received)
	if remaining < 0 {
		return 0
	}
	return remaining
}
