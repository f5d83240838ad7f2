package bip

import (
	"encoding/binary"
	"fmt"
)

// BVLCType is the first octet of every BACnet/IP frame.
const BVLCType = 0x81

// DefaultPort is the well-known BACnet/IP UDP port 47808.
const DefaultPort = 0xBAC0

// MaxFrameLength is the largest BVLL frame a datalink sends or accepts.
const MaxFrameLength = 1497

const (
	headerLength    = 4
	forwardedLength = headerLength + macLength
)

// Function is a BVLC function code.
type Function uint8

const (
	FunctionResult                Function = 0x00
	FunctionWriteBDT              Function = 0x01
	FunctionReadBDT               Function = 0x02
	FunctionReadBDTAck            Function = 0x03
	FunctionForwardedNPDU         Function = 0x04
	FunctionRegisterForeignDevice Function = 0x05
	FunctionReadFDT               Function = 0x06
	FunctionReadFDTAck            Function = 0x07
	FunctionDeleteFDTEntry        Function = 0x08
	FunctionDistributeBroadcast   Function = 0x09
	FunctionOriginalUnicastNPDU   Function = 0x0A
	FunctionOriginalBroadcastNPDU Function = 0x0B
	FunctionSecureBVLL            Function = 0x0C
)

func (f Function) String() string {
	switch f {
	case FunctionResult:
		return "Result"
	case FunctionWriteBDT:
		return "Write-Broadcast-Distribution-Table"
	case FunctionReadBDT:
		return "Read-Broadcast-Distribution-Table"
	case FunctionReadBDTAck:
		return "Read-Broadcast-Distribution-Table-Ack"
	case FunctionForwardedNPDU:
		return "Forwarded-NPDU"
	case FunctionRegisterForeignDevice:
		return "Register-Foreign-Device"
	case FunctionReadFDT:
		return "Read-Foreign-Device-Table"
	case FunctionReadFDTAck:
		return "Read-Foreign-Device-Table-Ack"
	case FunctionDeleteFDTEntry:
		return "Delete-Foreign-Device-Table-Entry"
	case FunctionDistributeBroadcast:
		return "Distribute-Broadcast-To-Network"
	case FunctionOriginalUnicastNPDU:
		return "Original-Unicast-NPDU"
	case FunctionOriginalBroadcastNPDU:
		return "Original-Broadcast-NPDU"
	case FunctionSecureBVLL:
		return "Secure-BVLL"
	default:
		return fmt.Sprintf("Function(0x%02X)", uint8(f))
	}
}

// deliversNPDU reports whether a station that is not a BBMD hands the NPDU
// of frames with this function to the network layer. Distribute-Broadcast-To-Network
// is addressed to a BBMD only and is ignored.
func (f Function) deliversNPDU() bool {
	switch f {
	case FunctionOriginalUnicastNPDU, FunctionOriginalBroadcastNPDU, FunctionForwardedNPDU:
		return true
	default:
		return false
	}
}

// BVLC is a decoded BVLC header.
type BVLC struct {
	Function Function
	// Length is the total frame length including the header.
	Length int
	// Origin is the B/IP MAC of the originating station of a Forwarded-NPDU.
	Origin [macLength]byte
}

// headerLen returns the offset of the NPDU in the frame.
func (h *BVLC) headerLen() int {
	if h.Function == FunctionForwardedNPDU {
		return forwardedLength
	}

	return headerLength
}

// AppendHeader appends a BVLC header for a frame of function fn carrying
// payloadLen bytes to b. A Forwarded-NPDU header also carries origin.
func AppendHeader(b []byte, fn Function, origin []byte, payloadLen int) ([]byte, error) {
	total := headerLength + payloadLen
	if fn == FunctionForwardedNPDU {
		if len(origin) != macLength {
			return b, fmt.Errorf("%w: origin length %d", ErrInvalidMAC, len(origin))
		}
		total += macLength
	}
	if total > MaxFrameLength {
		return b, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, total)
	}

	b = append(b, BVLCType, byte(fn))
	b = binary.BigEndian.AppendUint16(b, uint16(total)) //nolint:gosec // bounded by MaxFrameLength
	if fn == FunctionForwardedNPDU {
		b = append(b, origin...)
	}

	return b, nil
}

// DecodeBVLC decodes the BVLC header of frame and returns it with the bytes
// following the header. Trailing bytes beyond the encoded length are ignored.
func DecodeBVLC(frame []byte) (BVLC, []byte, error) {
	var h BVLC
	if len(frame) < headerLength {
		return h, nil, fmt.Errorf("%w: %d bytes", ErrInvalidBVLC, len(frame))
	}
	if frame[0] != BVLCType {
		return h, nil, fmt.Errorf("%w: type 0x%02X", ErrInvalidBVLC, frame[0])
	}

	h.Function = Function(frame[1])
	h.Length = int(binary.BigEndian.Uint16(frame[2:4]))
	if h.Length < h.headerLen() || h.Length > len(frame) {
		return h, nil, fmt.Errorf("%w: length %d of %d bytes", ErrInvalidBVLC, h.Length, len(frame))
	}
	if h.Function == FunctionForwardedNPDU {
		copy(h.Origin[:], frame[headerLength:forwardedLength])
	}

	return h, frame[h.headerLen():h.Length], nil
}
