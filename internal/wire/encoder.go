package wire

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/beaconmdns/beacon/internal/errors"
	"github.com/beaconmdns/beacon/internal/protocol"
)

// ErrOverflow is returned (wrapped) by Encode when the produced buffer
// would exceed the caller's maximum length. The caller is expected to
// split the message across multiple packets (see the reply package's
// Sender.SendNow, which packs answers into as many packets as needed).
var ErrOverflow = &errors.ValidationError{
	Field:   "message",
	Message: "encoded message exceeds maximum length",
}

// Encoder builds a wire-format DNS message, compressing names with a
// label-suffix dictionary built as it writes: once a name (or a name
// suffix) has been written at some offset, any later name sharing that
// suffix is replaced by a pointer to it.
type Encoder struct {
	buf       []byte
	dict      map[string]int // dotted-suffix -> offset it was first written at
	maxLen    int
	overflows bool
}

// NewEncoder returns an Encoder bounding the encoded message to maxLen
// bytes. A maxLen of 0 uses protocol.DefaultMTU.
func NewEncoder(maxLen int) *Encoder {
	if maxLen <= 0 {
		maxLen = protocol.DefaultMTU
	}
	return &Encoder{
		buf:    make([]byte, 12, 256),
		dict:   make(map[string]int),
		maxLen: maxLen,
	}
}

// Encode serializes a complete message. It returns ErrOverflow (wrapped)
// if the result would exceed the encoder's configured maximum length;
// the partially built buffer is discarded in that case.
func Encode(m *Message, maxLen int) ([]byte, error) {
	e := NewEncoder(maxLen)
	return e.encode(m)
}

func (e *Encoder) encode(m *Message) ([]byte, error) {
	binary.BigEndian.PutUint16(e.buf[0:2], m.Header.ID)
	binary.BigEndian.PutUint16(e.buf[2:4], m.Header.Flags)
	binary.BigEndian.PutUint16(e.buf[4:6], uint16(len(m.Questions)))
	binary.BigEndian.PutUint16(e.buf[6:8], uint16(len(m.Answers)))
	binary.BigEndian.PutUint16(e.buf[8:10], uint16(len(m.Authorities)))
	binary.BigEndian.PutUint16(e.buf[10:12], uint16(len(m.Additionals)))

	for _, q := range m.Questions {
		if err := e.writeQuestion(q); err != nil {
			return nil, err
		}
	}
	for _, rr := range m.Answers {
		if err := e.writeRR(rr); err != nil {
			return nil, err
		}
	}
	for _, rr := range m.Authorities {
		if err := e.writeRR(rr); err != nil {
			return nil, err
		}
	}
	for _, rr := range m.Additionals {
		if err := e.writeRR(rr); err != nil {
			return nil, err
		}
	}

	if len(e.buf) > e.maxLen {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrOverflow, len(e.buf), e.maxLen)
	}
	return e.buf, nil
}

func (e *Encoder) writeQuestion(q Question) error {
	if err := e.writeName(q.Name); err != nil {
		return err
	}
	var typeField [2]byte
	binary.BigEndian.PutUint16(typeField[:], uint16(q.Type))
	e.buf = append(e.buf, typeField[:]...)

	class := uint16(q.Class)
	if q.QU {
		class |= 0x8000
	}
	var classField [2]byte
	binary.BigEndian.PutUint16(classField[:], class)
	e.buf = append(e.buf, classField[:]...)
	return nil
}

func (e *Encoder) writeRR(rr ResourceRecord) error {
	if err := e.writeName(rr.Name); err != nil {
		return err
	}

	var typeField [2]byte
	binary.BigEndian.PutUint16(typeField[:], uint16(rr.Type()))
	e.buf = append(e.buf, typeField[:]...)

	class := uint16(rr.Class)
	if rr.CacheFlush {
		class |= 0x8000
	}
	var classField [2]byte
	binary.BigEndian.PutUint16(classField[:], class)
	e.buf = append(e.buf, classField[:]...)

	var ttlField [4]byte
	binary.BigEndian.PutUint32(ttlField[:], uint32(rr.TTL.Seconds()))
	e.buf = append(e.buf, ttlField[:]...)

	lenOffset := len(e.buf)
	e.buf = append(e.buf, 0, 0) // RDLENGTH placeholder

	rdataStart := len(e.buf)
	if err := e.writeRData(rr.Data); err != nil {
		return err
	}
	rdlen := len(e.buf) - rdataStart
	binary.BigEndian.PutUint16(e.buf[lenOffset:lenOffset+2], uint16(rdlen)) //nolint:gosec // rdlen bounded by MTU
	return nil
}

func (e *Encoder) writeRData(data RData) error {
	switch d := data.(type) {
	case AData:
		e.buf = append(e.buf, d.Addr[:]...)
	case AAAAData:
		e.buf = append(e.buf, d.Addr[:]...)
	case PTRData:
		return e.writeName(d.Target)
	case SRVData:
		var fields [6]byte
		binary.BigEndian.PutUint16(fields[0:2], d.Priority)
		binary.BigEndian.PutUint16(fields[2:4], d.Weight)
		binary.BigEndian.PutUint16(fields[4:6], d.Port)
		e.buf = append(e.buf, fields[:]...)
		return e.writeName(d.Target)
	case TXTData:
		strs := d.Strings
		if len(strs) == 0 {
			strs = []string{""}
		}
		for _, s := range strs {
			if len(s) > 255 {
				return &errors.ValidationError{
					Field:   "txt",
					Value:   s,
					Message: "TXT character-string exceeds 255 bytes",
				}
			}
			e.buf = append(e.buf, byte(len(s)))
			e.buf = append(e.buf, []byte(s)...)
		}
	case NSECData:
		if err := e.writeName(d.NextDomain); err != nil {
			return err
		}
		e.buf = append(e.buf, encodeNSECBitmap(d.Types)...)
	default:
		return &errors.ValidationError{
			Field:   "rdata",
			Message: fmt.Sprintf("encoder does not produce type %T", data),
		}
	}
	return nil
}

// EncodeRData renders data as it would appear on the wire, with names
// written uncompressed. It is used where rdata bytes must be compared
// rather than transmitted, e.g. the RFC 6762 §8.2 probe tie-break.
func EncodeRData(data RData) ([]byte, error) {
	e := &Encoder{buf: nil, dict: make(map[string]int), maxLen: 1 << 30}
	if err := e.writeRData(data); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// writeName writes name using label-suffix compression: the longest
// suffix of name already present in the dictionary is replaced by a
// pointer, and every new suffix written is recorded for later names to
// reference.
func (e *Encoder) writeName(name string) error {
	labels := splitLabels(name)

	for i := 0; i < len(labels); i++ {
		suffix := strings.Join(labels[i:], ".")
		if offset, ok := e.dict[suffix]; ok && offset <= 0x3FFF {
			var ptr [2]byte
			binary.BigEndian.PutUint16(ptr[:], uint16(0xC000|offset)) //nolint:gosec // bounded by 0x3FFF check
			e.buf = append(e.buf, ptr[:]...)
			return nil
		}

		if len(e.buf) <= 0x3FFF {
			e.dict[suffix] = len(e.buf)
		}

		label := labels[i]
		if len(label) > protocol.MaxLabelLength {
			return &errors.ValidationError{
				Field:   "name",
				Value:   name,
				Message: fmt.Sprintf("label %q exceeds maximum length %d bytes", label, protocol.MaxLabelLength),
			}
		}
		e.buf = append(e.buf, byte(len(label)))
		e.buf = append(e.buf, []byte(label)...)
	}

	e.buf = append(e.buf, 0)
	return nil
}

func encodeNSECBitmap(types []protocol.RecordType) []byte {
	byWindow := make(map[int][]int)
	for _, t := range types {
		w := int(t) / 256
		bit := int(t) % 256
		byWindow[w] = append(byWindow[w], bit)
	}

	var out []byte
	for w := 0; w <= 255; w++ {
		bits, ok := byWindow[w]
		if !ok {
			continue
		}
		maxBit := 0
		for _, b := range bits {
			if b > maxBit {
				maxBit = b
			}
		}
		blockLen := maxBit/8 + 1
		block := make([]byte, blockLen)
		for _, b := range bits {
			block[b/8] |= 0x80 >> uint(b%8)
		}
		out = append(out, byte(w), byte(blockLen))
		out = append(out, block...)
	}
	return out
}
