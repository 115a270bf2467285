// Package wire implements the DNS message codec: name compression with
// pointer-loop protection, the resource-record model served by the
// record repository, and an MTU-aware encoder/decoder pair. Nothing in
// this package panics on malformed input — decode failures return a
// *errors.WireFormatError and the caller drops the packet.
package wire

import (
	"fmt"
	"strings"

	"github.com/beaconmdns/beacon/internal/errors"
	"github.com/beaconmdns/beacon/internal/protocol"
)

// ParseName parses a DNS name from a message buffer, following
// compression pointers per RFC 1035 §4.1.4.
//
// Two independent guards bound the work a single malformed name can
// force on the decoder: MaxCompressionJumps bounds how many backward
// pointers are followed, and MaxLabelsPerName bounds the number of
// labels read, so a pointer that jumps backward to a position that
// re-reads many short labels still terminates.
func ParseName(msg []byte, offset int) (name string, newOffset int, err error) {
	if offset < 0 || offset >= len(msg) {
		return "", offset, &errors.WireFormatError{
			Operation: "parse name",
			Offset:    offset,
			Message:   "offset out of bounds",
		}
	}

	var labels []string
	jumps := 0
	pos := offset
	jumped := false

	for {
		if pos >= len(msg) {
			return "", offset, &errors.WireFormatError{
				Operation: "parse name",
				Offset:    pos,
				Message:   "unexpected end of message while parsing name",
			}
		}

		length := msg[pos]

		if (length & protocol.CompressionMask) == protocol.CompressionMask {
			if pos+1 >= len(msg) {
				return "", offset, &errors.WireFormatError{
					Operation: "parse name",
					Offset:    pos,
					Message:   "truncated compression pointer",
				}
			}

			pointerOffset := int(msg[pos]&0x3F)<<8 | int(msg[pos+1])

			// RFC 1035 §4.1.4: pointers always point backward in the message.
			if pointerOffset >= pos {
				return "", offset, &errors.WireFormatError{
					Operation: "parse name",
					Offset:    pos,
					Message:   fmt.Sprintf("invalid compression pointer: points to offset %d (current position %d)", pointerOffset, pos),
				}
			}

			if !jumped {
				newOffset = pos + 2
				jumped = true
			}

			pos = pointerOffset

			jumps++
			if jumps > protocol.MaxCompressionJumps {
				return "", offset, &errors.WireFormatError{
					Operation: "parse name",
					Offset:    pos,
					Message:   fmt.Sprintf("too many compression jumps (possible loop, exceeded %d jumps)", protocol.MaxCompressionJumps),
				}
			}

			continue
		}

		if length == 0 {
			if !jumped {
				newOffset = pos + 1
			}
			break
		}

		if length > protocol.MaxLabelLength {
			return "", offset, &errors.WireFormatError{
				Operation: "parse name",
				Offset:    pos,
				Message:   fmt.Sprintf("label length %d exceeds maximum %d bytes per RFC 1035 §3.1", length, protocol.MaxLabelLength),
			}
		}

		if pos+1+int(length) > len(msg) {
			return "", offset, &errors.WireFormatError{
				Operation: "parse name",
				Offset:    pos,
				Message:   fmt.Sprintf("truncated label: expected %d bytes, only %d available", length, len(msg)-pos-1),
			}
		}

		label := string(msg[pos+1 : pos+1+int(length)])
		labels = append(labels, label)
		if len(labels) > protocol.MaxLabelsPerName {
			return "", offset, &errors.WireFormatError{
				Operation: "parse name",
				Offset:    pos,
				Message:   fmt.Sprintf("name exceeds %d label cap", protocol.MaxLabelsPerName),
			}
		}

		pos += 1 + int(length)
	}

	name = strings.Join(labels, ".")

	if len(name) > protocol.MaxNameLength {
		return "", offset, &errors.WireFormatError{
			Operation: "parse name",
			Offset:    offset,
			Message:   fmt.Sprintf("name length %d exceeds maximum %d bytes per RFC 1035 §3.1", len(name), protocol.MaxNameLength),
		}
	}

	return name, newOffset, nil
}

// EncodeName encodes a DNS name into wire format per RFC 1035 §3.1, with
// no compression. Callers that want compression use (*Encoder).writeName
// instead, which consults the label-suffix dictionary.
func EncodeName(name string) ([]byte, error) {
	if name == "" || name == "." {
		return []byte{0}, nil
	}

	labels := strings.Split(name, ".")
	if len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}

	encoded := make([]byte, 0, 256)
	for _, label := range labels {
		if len(label) == 0 {
			return nil, &errors.ValidationError{
				Field:   "name",
				Value:   name,
				Message: "empty label (consecutive dots)",
			}
		}
		if len(label) > protocol.MaxLabelLength {
			return nil, &errors.ValidationError{
				Field:   "name",
				Value:   name,
				Message: fmt.Sprintf("label %q exceeds maximum length %d bytes per RFC 1035 §3.1", label, protocol.MaxLabelLength),
			}
		}

		for i, ch := range label {
			valid := (ch >= 'a' && ch <= 'z') ||
				(ch >= 'A' && ch <= 'Z') ||
				(ch >= '0' && ch <= '9') ||
				ch == '-' ||
				ch == '_'
			if !valid {
				return nil, &errors.ValidationError{
					Field:   "name",
					Value:   name,
					Message: fmt.Sprintf("invalid character %q in label %q (position %d)", ch, label, i),
				}
			}
			if ch == '-' && (i == 0 || i == len(label)-1) {
				return nil, &errors.ValidationError{
					Field:   "name",
					Value:   name,
					Message: fmt.Sprintf("hyphen cannot be first or last character in label %q", label),
				}
			}
		}

		encoded = append(encoded, byte(len(label)))
		encoded = append(encoded, []byte(label)...)
	}
	encoded = append(encoded, 0)

	if len(encoded) > protocol.MaxNameLength {
		return nil, &errors.ValidationError{
			Field:   "name",
			Value:   name,
			Message: fmt.Sprintf("encoded name length %d exceeds maximum %d bytes per RFC 1035 §3.1", len(encoded), protocol.MaxNameLength),
		}
	}

	return encoded, nil
}

// splitLabels splits a dotted name into its labels without the
// compression/validation machinery, for use by the dictionary-keyed
// encoder which validates labels individually as it writes them.
func splitLabels(name string) []string {
	if name == "" || name == "." {
		return nil
	}
	labels := strings.Split(name, ".")
	if len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	return labels
}

// EncodeServiceInstanceName encodes a service instance name per RFC 6763
// §4.3: the instance portion is a single label that may contain arbitrary
// UTF-8 bytes (including spaces), unlike the strictly-validated labels of
// the service type that follows it.
func EncodeServiceInstanceName(instanceName, serviceType string) ([]byte, error) {
	if len(instanceName) == 0 {
		return nil, &errors.ValidationError{
			Field:   "instanceName",
			Value:   instanceName,
			Message: "instance name cannot be empty",
		}
	}
	if len(instanceName) > protocol.MaxLabelLength {
		return nil, &errors.ValidationError{
			Field:   "instanceName",
			Value:   instanceName,
			Message: fmt.Sprintf("instance name exceeds maximum label length %d bytes", protocol.MaxLabelLength),
		}
	}

	encoded := make([]byte, 0, 256)
	encoded = append(encoded, byte(len(instanceName)))
	encoded = append(encoded, []byte(instanceName)...)

	serviceTypeEncoded, err := EncodeName(serviceType)
	if err != nil {
		return nil, fmt.Errorf("encoding service type: %w", err)
	}
	if len(serviceTypeEncoded) > 0 && serviceTypeEncoded[len(serviceTypeEncoded)-1] == 0 {
		serviceTypeEncoded = serviceTypeEncoded[:len(serviceTypeEncoded)-1]
	}

	encoded = append(encoded, serviceTypeEncoded...)
	encoded = append(encoded, 0)

	return encoded, nil
}
