package bacnet

import (
	"encoding/binary"
	"fmt"
)

const (
	tagEnumerated   = 9
	tagClassContext = 0x08
)

// appendUnsignedBody appends v in the fewest big-endian octets (1..4) and
// returns the buffer and the octet count.
func appendUnsignedBody(b []byte, v uint32) ([]byte, int) {
	switch {
	case v <= 0xFF:
		return append(b, byte(v)), 1
	case v <= 0xFFFF:
		return binary.BigEndian.AppendUint16(b, uint16(v)), 2
	case v <= 0xFFFFFF:
		return append(b, byte(v>>16), byte(v>>8), byte(v)), 3
	default:
		return binary.BigEndian.AppendUint32(b, v), 4
	}
}

func appendTagged(b []byte, tag byte, context bool, v uint32) []byte {
	pos := len(b)
	b = append(b, 0)
	b, n := appendUnsignedBody(b, v)
	first := tag<<4 | byte(n)
	if context {
		first |= tagClassContext
	}
	b[pos] = first

	return b
}

// AppendEnumerated appends an application tagged Enumerated value.
func AppendEnumerated(b []byte, v uint32) []byte {
	return appendTagged(b, tagEnumerated, false, v)
}

// AppendContextUnsigned appends a context tagged Unsigned value.
func AppendContextUnsigned(b []byte, tag uint8, v uint32) []byte {
	return appendTagged(b, tag, true, v)
}

// DecodeEnumerated decodes an application tagged Enumerated value at the start
// of b and returns it with the number of octets consumed.
func DecodeEnumerated(b []byte) (uint32, int, error) {
	if len(b) < 1 {
		return 0, 0, ErrShortBuffer
	}
	if b[0]>>4 != tagEnumerated || b[0]&tagClassContext != 0 {
		return 0, 0, fmt.Errorf("%w: expected enumerated, got 0x%02X", ErrInvalidTag, b[0])
	}
	n := int(b[0] & 0x07)
	if n < 1 || n > 4 {
		return 0, 0, fmt.Errorf("%w: enumerated length %d", ErrInvalidTag, n)
	}
	if len(b) < 1+n {
		return 0, 0, ErrShortBuffer
	}

	var v uint32
	for _, octet := range b[1 : 1+n] {
		v = v<<8 | uint32(octet)
	}

	return v, 1 + n, nil
}
