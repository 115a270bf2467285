package wire

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/beaconmdns/beacon/internal/errors"
	"github.com/beaconmdns/beacon/internal/protocol"
)

// Decode parses a complete DNS message from its wire representation.
// Decode never panics: any malformed structure is reported as a
// *errors.WireFormatError so the caller can log and drop the packet per
// the responder's handling of adversarial input.
func Decode(msg []byte) (*Message, error) {
	now := time.Now()
	if len(msg) < 12 {
		return nil, &errors.WireFormatError{
			Operation: "parse header",
			Offset:    0,
			Message:   fmt.Sprintf("message too short for header: %d bytes", len(msg)),
		}
	}

	h := Header{
		ID:      binary.BigEndian.Uint16(msg[0:2]),
		Flags:   binary.BigEndian.Uint16(msg[2:4]),
		QDCount: binary.BigEndian.Uint16(msg[4:6]),
		ANCount: binary.BigEndian.Uint16(msg[6:8]),
		NSCount: binary.BigEndian.Uint16(msg[8:10]),
		ARCount: binary.BigEndian.Uint16(msg[10:12]),
	}

	offset := 12
	out := &Message{Header: h}

	for i := 0; i < int(h.QDCount); i++ {
		q, next, err := decodeQuestion(msg, offset)
		if err != nil {
			return nil, err
		}
		out.Questions = append(out.Questions, q)
		offset = next
	}

	for i := 0; i < int(h.ANCount); i++ {
		rr, next, err := decodeRR(msg, offset, now)
		if err != nil {
			return nil, err
		}
		out.Answers = append(out.Answers, rr)
		offset = next
	}

	for i := 0; i < int(h.NSCount); i++ {
		rr, next, err := decodeRR(msg, offset, now)
		if err != nil {
			return nil, err
		}
		out.Authorities = append(out.Authorities, rr)
		offset = next
	}

	for i := 0; i < int(h.ARCount); i++ {
		rr, next, err := decodeRR(msg, offset, now)
		if err != nil {
			return nil, err
		}
		out.Additionals = append(out.Additionals, rr)
		offset = next
	}

	return out, nil
}

func decodeQuestion(msg []byte, offset int) (Question, int, error) {
	name, next, err := ParseName(msg, offset)
	if err != nil {
		return Question{}, offset, err
	}
	if next+4 > len(msg) {
		return Question{}, offset, &errors.WireFormatError{
			Operation: "parse question",
			Offset:    next,
			Message:   "truncated question: missing QTYPE/QCLASS",
		}
	}

	qtype := binary.BigEndian.Uint16(msg[next : next+2])
	rawClass := binary.BigEndian.Uint16(msg[next+2 : next+4])

	return Question{
		Name:  name,
		Type:  protocol.RecordType(qtype),
		Class: protocol.DNSClass(rawClass & 0x7FFF),
		QU:    rawClass&0x8000 != 0,
	}, next + 4, nil
}

func decodeRR(msg []byte, offset int, now time.Time) (ResourceRecord, int, error) {
	name, next, err := ParseName(msg, offset)
	if err != nil {
		return ResourceRecord{}, offset, err
	}
	if next+10 > len(msg) {
		return ResourceRecord{}, offset, &errors.WireFormatError{
			Operation: "parse resource record",
			Offset:    next,
			Message:   "truncated record header",
		}
	}

	rtype := protocol.RecordType(binary.BigEndian.Uint16(msg[next : next+2]))
	rawClass := binary.BigEndian.Uint16(msg[next+2 : next+4])
	ttlSeconds := binary.BigEndian.Uint32(msg[next+4 : next+8])
	rdlength := binary.BigEndian.Uint16(msg[next+8 : next+10])
	rdataStart := next + 10

	if rdataStart+int(rdlength) > len(msg) {
		return ResourceRecord{}, offset, &errors.WireFormatError{
			Operation: "parse resource record",
			Offset:    rdataStart,
			Message:   fmt.Sprintf("RDLENGTH %d exceeds remaining message bytes", rdlength),
		}
	}
	rdata := msg[rdataStart : rdataStart+int(rdlength)]
	newOffset := rdataStart + int(rdlength)

	data, err := decodeRData(msg, rdataStart, rdata, rtype)
	if err != nil {
		return ResourceRecord{}, offset, err
	}

	return ResourceRecord{
		Name:       name,
		Class:      protocol.DNSClass(rawClass & 0x7FFF),
		TTL:        time.Duration(ttlSeconds) * time.Second,
		CacheFlush: rawClass&0x8000 != 0,
		Received:   now,
		Data:       data,
	}, newOffset, nil
}

func decodeRData(msg []byte, rdataOffset int, rdata []byte, rtype protocol.RecordType) (RData, error) {
	switch rtype {
	case protocol.RecordTypeA:
		if len(rdata) != 4 {
			return nil, &errors.WireFormatError{
				Operation: "decode A rdata",
				Offset:    rdataOffset,
				Message:   fmt.Sprintf("A record rdata must be 4 bytes, got %d", len(rdata)),
			}
		}
		var a AData
		copy(a.Addr[:], rdata)
		return a, nil

	case protocol.RecordTypeAAAA:
		if len(rdata) != 16 {
			return nil, &errors.WireFormatError{
				Operation: "decode AAAA rdata",
				Offset:    rdataOffset,
				Message:   fmt.Sprintf("AAAA record rdata must be 16 bytes, got %d", len(rdata)),
			}
		}
		var a AAAAData
		copy(a.Addr[:], rdata)
		return a, nil

	case protocol.RecordTypePTR:
		target, _, err := ParseName(msg, rdataOffset)
		if err != nil {
			return nil, err
		}
		return PTRData{Target: target}, nil

	case protocol.RecordTypeSRV:
		if len(rdata) < 6 {
			return nil, &errors.WireFormatError{
				Operation: "decode SRV rdata",
				Offset:    rdataOffset,
				Message:   fmt.Sprintf("SRV record rdata too short: %d bytes", len(rdata)),
			}
		}
		target, _, err := ParseName(msg, rdataOffset+6)
		if err != nil {
			return nil, err
		}
		return SRVData{
			Priority: binary.BigEndian.Uint16(rdata[0:2]),
			Weight:   binary.BigEndian.Uint16(rdata[2:4]),
			Port:     binary.BigEndian.Uint16(rdata[4:6]),
			Target:   target,
		}, nil

	case protocol.RecordTypeTXT:
		strs, err := decodeTXTStrings(rdata, rdataOffset)
		if err != nil {
			return nil, err
		}
		return TXTData{Strings: strs}, nil

	case protocol.RecordTypeNSEC:
		nextDomain, next, err := ParseName(msg, rdataOffset)
		if err != nil {
			return nil, err
		}
		types, err := decodeNSECBitmap(msg, next, rdataOffset+len(rdata))
		if err != nil {
			return nil, err
		}
		return NSECData{NextDomain: nextDomain, Types: types}, nil

	default:
		return OpaqueData{WireType: rtype, Length: len(rdata)}, nil
	}
}

func decodeTXTStrings(rdata []byte, rdataOffset int) ([]string, error) {
	if len(rdata) == 0 {
		return []string{""}, nil
	}
	var strs []string
	pos := 0
	for pos < len(rdata) {
		n := int(rdata[pos])
		pos++
		if pos+n > len(rdata) {
			return nil, &errors.WireFormatError{
				Operation: "decode TXT rdata",
				Offset:    rdataOffset + pos,
				Message:   "truncated TXT character-string",
			}
		}
		strs = append(strs, string(rdata[pos:pos+n]))
		pos += n
	}
	return strs, nil
}

func decodeNSECBitmap(msg []byte, offset, end int) ([]protocol.RecordType, error) {
	var types []protocol.RecordType
	pos := offset
	for pos < end {
		if pos+2 > len(msg) {
			return nil, &errors.WireFormatError{
				Operation: "decode NSEC bitmap",
				Offset:    pos,
				Message:   "truncated bitmap window header",
			}
		}
		window := int(msg[pos])
		length := int(msg[pos+1])
		pos += 2
		if pos+length > len(msg) || pos+length > end {
			return nil, &errors.WireFormatError{
				Operation: "decode NSEC bitmap",
				Offset:    pos,
				Message:   "truncated bitmap window data",
			}
		}
		for i := 0; i < length; i++ {
			b := msg[pos+i]
			for bit := 0; bit < 8; bit++ {
				if b&(0x80>>uint(bit)) != 0 {
					types = append(types, protocol.RecordType(window*256+i*8+bit))
				}
			}
		}
		pos += length
	}
	return types, nil
}
