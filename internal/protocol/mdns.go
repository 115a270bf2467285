// Package protocol defines mDNS protocol constants and validation logic
// per RFC 6762 (Multicast DNS) and RFC 6763 (DNS-Based Service Discovery).
//
// PRIMARY TECHNICAL AUTHORITY: RFC 6762, RFC 6763, RFC 1035 §3/§4.
package protocol

import (
	"net"
	"time"
)

// mDNS Protocol Constants per RFC 6762 §5.
const (
	// Port is the mDNS port number (5353) for both IPv4 and IPv6.
	Port = 5353

	// MulticastAddrIPv4 is the mDNS IPv4 multicast group address.
	MulticastAddrIPv4 = "224.0.0.251"

	// MulticastAddrIPv6 is the mDNS IPv6 multicast group address (link-local).
	MulticastAddrIPv6 = "ff02::fb"
)

// MulticastGroupIPv4 returns the mDNS IPv4 multicast group address.
func MulticastGroupIPv4() *net.UDPAddr {
	return &net.UDPAddr{
		IP:   net.ParseIP(MulticastAddrIPv4), // nosemgrep: beacon-hardcoded-multicast-address
		Port: Port,
	}
}

// MulticastGroupIPv6 returns the mDNS IPv6 multicast group address.
func MulticastGroupIPv6() *net.UDPAddr {
	return &net.UDPAddr{
		IP:   net.ParseIP(MulticastAddrIPv6), // nosemgrep: beacon-hardcoded-multicast-address
		Port: Port,
	}
}

// RecordType represents a DNS record type per RFC 1035 §3.2.2.
type RecordType uint16

// Supported DNS record types: the tagged variant {PTR, SRV, TXT, A, AAAA,
// NSEC} the record repository serves, plus the ANY query type used for
// probing. All other wire types are decoded as opaque (rdata length only)
// and are never produced by the encoder.
const (
	// RecordTypeA represents an A (IPv4 address) record per RFC 1035 §3.4.1.
	RecordTypeA RecordType = 1

	// RecordTypePTR represents a PTR (pointer/domain name) record per RFC 1035 §3.3.12.
	RecordTypePTR RecordType = 12

	// RecordTypeTXT represents a TXT (text strings) record per RFC 1035 §3.3.14.
	RecordTypeTXT RecordType = 16

	// RecordTypeAAAA represents an AAAA (IPv6 address) record per RFC 3596.
	RecordTypeAAAA RecordType = 28

	// RecordTypeSRV represents an SRV (service location) record per RFC 2782.
	RecordTypeSRV RecordType = 33

	// RecordTypeNSEC represents an NSEC (next secure, negative existence) record per RFC 4034 §4.
	//
	// RFC 6762 §6.1: used in mDNS responses to assert the set of record
	// types present for a name without a further round trip.
	RecordTypeNSEC RecordType = 47

	// RecordTypeANY represents a query for all record types per RFC 1035 §3.2.3.
	//
	// RFC 6762 §8.1: probe queries use query type ANY (255) so any record
	// present for the name is returned for tie-breaking.
	RecordTypeANY RecordType = 255
)

// String returns the human-readable name for a RecordType.
func (rt RecordType) String() string {
	switch rt {
	case RecordTypeA:
		return "A"
	case RecordTypePTR:
		return "PTR"
	case RecordTypeTXT:
		return "TXT"
	case RecordTypeAAAA:
		return "AAAA"
	case RecordTypeSRV:
		return "SRV"
	case RecordTypeNSEC:
		return "NSEC"
	case RecordTypeANY:
		return "ANY"
	default:
		return "UNKNOWN"
	}
}

// IsSupported returns true if the RecordType is one the repository
// produces or accepts as a query type.
func (rt RecordType) IsSupported() bool {
	switch rt {
	case RecordTypeA, RecordTypePTR, RecordTypeTXT, RecordTypeAAAA, RecordTypeSRV, RecordTypeNSEC, RecordTypeANY:
		return true
	default:
		return false
	}
}

// DNSClass represents a DNS class per RFC 1035 §3.2.4.
type DNSClass uint16

const (
	// ClassIN is the Internet (IN) class per RFC 1035 §3.2.4.
	ClassIN DNSClass = 1

	// ClassFlushIN is the IN class with the mDNS cache-flush bit (high bit)
	// set per RFC 6762 §10.2, as it appears on the wire in a resource
	// record's CLASS field.
	ClassFlushIN DNSClass = ClassIN | 0x8000
)

// DNS Header Flags per RFC 1035 §4.1.1 and RFC 6762 §18.
const (
	// FlagQR is the Query/Response bit (bit 15).
	FlagQR uint16 = 1 << 15 // 0x8000

	// FlagAA is the Authoritative Answer bit (bit 10).
	FlagAA uint16 = 1 << 10 // 0x0400

	// FlagTC is the Truncated bit (bit 9): signals more known-answer
	// records are following in a subsequent packet.
	FlagTC uint16 = 1 << 9 // 0x0200

	// FlagRD is the Recursion Desired bit (bit 8).
	FlagRD uint16 = 1 << 8 // 0x0100
)

// OPCODE values per RFC 1035 §4.1.1.
const (
	// OpcodeQuery is the standard query OPCODE (0); RFC 6762 §18.3
	// requires it on transmission for both queries and responses.
	OpcodeQuery uint16 = 0
)

// RCODE values per RFC 1035 §4.1.1.
const (
	// RCodeNoError is the no-error RCODE (0). RFC 6762 §18.11: messages
	// with a non-zero RCODE MUST be silently ignored.
	RCodeNoError uint16 = 0
)

// DNS name and label constraints.
const (
	// MaxLabelLength is the maximum length of a DNS label (63 bytes) per RFC 1035 §3.1.
	MaxLabelLength = 63

	// MaxNameLength is the maximum length of a DNS name (255 bytes) per RFC 1035 §3.1.
	MaxNameLength = 255

	// MaxLabelsPerName bounds the number of labels the decoder will follow
	// for a single name, independent of the jump-count guard below.
	MaxLabelsPerName = 128

	// MaxCompressionJumps bounds the number of compression-pointer jumps
	// the name reader follows while decompressing a single name, guarding
	// against pointer loops in malformed input.
	MaxCompressionJumps = 16

	// DefaultMTU is the default maximum encoded message size in bytes; the
	// encoder signals overflow above this so the caller can split the
	// message across multiple packets.
	DefaultMTU = 1300

	// MaxTXTRecordBytes bounds the total encoded size of a TXT record's
	// rdata per RFC 6763 §6.2 recommended practice.
	MaxTXTRecordBytes = 1300

	// MulticastTTL is the IP TTL / IPv6 hop limit mDNS packets MUST carry
	// per RFC 6762 §11, so routers and off-link receivers drop them.
	MulticastTTL = 255

	// JumboFrameSize is the receive buffer size used by the socket
	// facade (C9); mDNS messages are nominally bounded at 512 bytes but
	// additional records can push well past that on crowded links.
	JumboFrameSize = 9000
)

// CompressionMask identifies a compression pointer: the high two bits of
// a label-length byte are both set (0xC0) per RFC 1035 §4.1.4.
const CompressionMask byte = 0xC0

// TTL values per RFC 6762 §10, expressed in whole seconds as the RFCs
// define them; callers needing milliseconds (the wire model's TTL unit)
// multiply by time.Second.
const (
	// TTLHostnameSeconds is the recommended TTL for records whose owner
	// name is a hostname, or whose rdata refers to one (A, AAAA, SRV,
	// NSEC, reverse-mapping PTR): 120 seconds.
	TTLHostnameSeconds = 120

	// TTLSharedSeconds is the recommended TTL for other records (the
	// service-type-to-instance PTR, and TXT): 4500 seconds (75 minutes).
	TTLSharedSeconds = 4500
)

// TTL duration helpers for the wire model's millisecond-based TTL unit.
var (
	// TTLHostname is TTLHostnameSeconds as a time.Duration.
	TTLHostname = TTLHostnameSeconds * time.Second

	// TTLShared is TTLSharedSeconds as a time.Duration.
	TTLShared = TTLSharedSeconds * time.Second
)

// Probing timing per RFC 6762 §8.1.
const (
	// ProbeCount is the number of probe queries sent before a candidate
	// name is considered uncontested.
	ProbeCount = 3

	// ProbeInterval is the interval between probe packets.
	ProbeInterval = 250 * time.Millisecond // nosemgrep: beacon-rfc-timing-local-const

	// ProbeInitialDelayMax bounds the random initial delay before the
	// first probe, chosen uniformly in [0, ProbeInitialDelayMax).
	ProbeInitialDelayMax = 250 * time.Millisecond
)

// Announcement timing per RFC 6762 §8.3 and §10.1.
const (
	// AnnounceCount is the number of unsolicited announcements sent after
	// a name is claimed.
	AnnounceCount = 3

	// AnnounceInitialDelay is the delay between the first announcement,
	// which is sent immediately, and the second.
	AnnounceInitialDelay = 1 * time.Second

	// AnnounceDelayMultiplier doubles the delay before each subsequent
	// announcement (1s, 2s, ...).
	AnnounceDelayMultiplier = 2

	// ExitAnnounceCount is the number of goodbye (TTL=0) announcements
	// sent when withdrawing a service.
	ExitAnnounceCount = 1

	// ExitAnnounceDelay is the delay before the goodbye announcement is
	// sent, allowing back-to-back removals to coalesce into one packet.
	ExitAnnounceDelay = 500 * time.Millisecond
)

// Reply timing per RFC 6762 §6.
const (
	// UnicastResponseDelayMin is the lower bound of the random delay
	// applied to a unicast (QU-bit) response.
	UnicastResponseDelayMin = 20 * time.Millisecond

	// UnicastResponseDelayMax is the upper bound of the random delay
	// applied to a unicast (QU-bit) response.
	UnicastResponseDelayMax = 120 * time.Millisecond

	// KnownAnswerAccumulationWindow bounds how long the responder waits
	// for follow-up known-answer packets (TC=1) from the same source
	// endpoint before finalizing a reply.
	KnownAnswerAccumulationWindow = 400 * time.Millisecond
)

// Conflict and rename limits.
const (
	// ConflictBackoff is the delay a losing probe waits before renaming
	// and restarting per RFC 6762 §8.2.
	ConflictBackoff = 1 * time.Second

	// MaxRenameAttempts bounds the number of conflict-driven renames
	// before a service registration gives up with FAILURE_MAX_LIMIT.
	MaxRenameAttempts = 15
)
