package bacnet

import (
	"encoding/binary"
	"fmt"
)

// ProtocolVersion is the only defined BACnet network layer protocol version.
const ProtocolVersion = 1

// DefaultHopCount is the hop count of an NPDU originated by this station.
const DefaultHopCount = 255

// NPDU control octet bits.
const (
	npduNetworkLayerMessage = 0x80
	npduDestSpecifier       = 0x20
	npduSourceSpecifier     = 0x08
	npduExpectingReply      = 0x04
	npduPriorityMask        = 0x03
)

// NPDUData holds the network layer parameters that accompany an APDU. The
// transaction layer stores a copy with every confirmed request so that a
// retransmission is sent with exactly the same network parameters.
type NPDUData struct {
	ProtocolVersion     uint8
	DataExpectingReply  bool
	NetworkLayerMessage bool
	NetworkMessageType  uint8
	VendorID            uint16
	Priority            Priority
	HopCount            uint8
}

// NewNPDUData returns the NPDU parameters for an application layer message.
func NewNPDUData(expectingReply bool, priority Priority) NPDUData {
	return NPDUData{
		ProtocolVersion:    ProtocolVersion,
		DataExpectingReply: expectingReply,
		Priority:           priority & npduPriorityMask,
		HopCount:           DefaultHopCount,
	}
}

// NPDUHeader is a decoded NPDU header.
type NPDUHeader struct {
	Data NPDUData
	// Dest is valid when HasDest is set; only Net and Adr are used.
	Dest    Address
	HasDest bool
	// Src is valid when HasSrc is set; only Net and Adr are used.
	Src    Address
	HasSrc bool
	// Len is the length of the header; the APDU (or network message body)
	// starts at this offset.
	Len int
}

// AppendNPDU appends the NPDU header for a message to dest, originated by src,
// to b and returns the extended buffer.
//
// A destination specifier is written only for remote or global broadcast
// destinations; a source specifier only when src is a remote address (routers
// forwarding on behalf of another network).
func AppendNPDU(b []byte, dest, src *Address, data *NPDUData) []byte {
	control := byte(data.Priority & npduPriorityMask)
	if data.NetworkLayerMessage {
		control |= npduNetworkLayerMessage
	}
	if data.DataExpectingReply {
		control |= npduExpectingReply
	}

	hasDest := dest != nil && dest.Net != LocalNetwork
	hasSrc := src != nil && src.Net != LocalNetwork && src.Net != GlobalBroadcastNetwork
	if hasDest {
		control |= npduDestSpecifier
	}
	if hasSrc {
		control |= npduSourceSpecifier
	}

	version := data.ProtocolVersion
	if version == 0 {
		version = ProtocolVersion
	}
	b = append(b, version, control)

	if hasDest {
		b = binary.BigEndian.AppendUint16(b, dest.Net)
		b = append(b, dest.AdrLen)
		b = append(b, dest.AdrBytes()...)
	}
	if hasSrc {
		b = binary.BigEndian.AppendUint16(b, src.Net)
		b = append(b, src.AdrLen)
		b = append(b, src.AdrBytes()...)
	}
	if hasDest {
		hop := data.HopCount
		if hop == 0 {
			hop = DefaultHopCount
		}
		b = append(b, hop)
	}
	if data.NetworkLayerMessage {
		b = append(b, data.NetworkMessageType)
		if data.NetworkMessageType >= 0x80 {
			b = binary.BigEndian.AppendUint16(b, data.VendorID)
		}
	}

	return b
}

// DecodeNPDU decodes the NPDU header at the start of b.
func DecodeNPDU(b []byte) (NPDUHeader, error) {
	var h NPDUHeader
	if len(b) < 2 {
		return h, ErrShortBuffer
	}
	if b[0] != ProtocolVersion {
		return h, fmt.Errorf("%w: %d", ErrInvalidVersion, b[0])
	}

	control := b[1]
	h.Data.ProtocolVersion = b[0]
	h.Data.NetworkLayerMessage = control&npduNetworkLayerMessage != 0
	h.Data.DataExpectingReply = control&npduExpectingReply != 0
	h.Data.Priority = Priority(control & npduPriorityMask)
	off := 2

	var err error
	if control&npduDestSpecifier != 0 {
		h.HasDest = true
		if h.Dest, off, err = decodeSpecifier(b, off); err != nil {
			return h, err
		}
	}
	if control&npduSourceSpecifier != 0 {
		h.HasSrc = true
		if h.Src, off, err = decodeSpecifier(b, off); err != nil {
			return h, err
		}
	}
	if h.HasDest {
		if len(b) < off+1 {
			return h, ErrShortBuffer
		}
		h.Data.HopCount = b[off]
		off++
	}
	if h.Data.NetworkLayerMessage {
		if len(b) < off+1 {
			return h, ErrShortBuffer
		}
		h.Data.NetworkMessageType = b[off]
		off++
		if h.Data.NetworkMessageType >= 0x80 {
			if len(b) < off+2 {
				return h, ErrShortBuffer
			}
			h.Data.VendorID = binary.BigEndian.Uint16(b[off:])
			off += 2
		}
	}
	h.Len = off

	return h, nil
}

func decodeSpecifier(b []byte, off int) (Address, int, error) {
	var a Address
	if len(b) < off+3 {
		return a, off, ErrShortBuffer
	}
	a.Net = binary.BigEndian.Uint16(b[off:])
	n := int(b[off+2])
	off += 3
	if n > MaxMACLen {
		return a, off, fmt.Errorf("%w: %d", ErrInvalidAddressLength, n)
	}
	if len(b) < off+n {
		return a, off, ErrShortBuffer
	}
	a.AdrLen = uint8(n) //nolint:gosec // bounded by MaxMACLen
	copy(a.Adr[:], b[off:off+n])

	return a, off + n, nil
}
