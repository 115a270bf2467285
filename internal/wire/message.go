package wire

import "github.com/beaconmdns/beacon/internal/protocol"

// Header is the 12-byte DNS message header per RFC 1035 §4.1.1.
type Header struct {
	ID      uint16
	Flags   uint16
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// IsQuery reports whether the QR bit is clear.
func (h Header) IsQuery() bool {
	return h.Flags&protocol.FlagQR == 0
}

// IsResponse reports whether the QR bit is set.
func (h Header) IsResponse() bool {
	return h.Flags&protocol.FlagQR != 0
}

// RCODE extracts the response code (bits 0-3).
func (h Header) RCODE() uint8 {
	return uint8(h.Flags & 0x000F) //nolint:gosec // masked to 4 bits
}

// OPCODE extracts the operation code (bits 11-14).
func (h Header) OPCODE() uint8 {
	return uint8((h.Flags >> 11) & 0x0F) //nolint:gosec // masked to 4 bits
}

// Question is a DNS question-section entry per RFC 1035 §4.1.2.
type Question struct {
	// Name is the domain name being queried.
	Name string

	// Type is the query type (RecordType, or ANY=255).
	Type protocol.RecordType

	// Class is almost always ClassIN.
	Class protocol.DNSClass

	// QU requests a unicast response per RFC 6762 §5.4 (the high bit of
	// the wire QCLASS field).
	QU bool
}

// Message is a complete DNS message per RFC 1035 §4.1: a header plus up
// to four sections.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []ResourceRecord
	Authorities []ResourceRecord
	Additionals []ResourceRecord
}
