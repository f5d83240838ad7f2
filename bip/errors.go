package bip

import "errors"

var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("bip: config is nil")

	// ErrClosed indicates an operation on a closed datalink.
	ErrClosed = errors.New("bip: datalink closed")

	// ErrInvalidBVLC indicates a frame that is not a valid BACnet/IP BVLL message.
	ErrInvalidBVLC = errors.New("bip: invalid BVLC header")

	// ErrFrameTooLarge indicates an NPDU that does not fit into a BVLL frame.
	ErrFrameTooLarge = errors.New("bip: frame too large")

	// ErrInvalidMAC indicates a MAC that is not a 6 byte B/IP address.
	ErrInvalidMAC = errors.New("bip: invalid B/IP MAC address")

	// ErrNotIPv4 indicates a UDP address without an IPv4 host.
	ErrNotIPv4 = errors.New("bip: address is not IPv4")
)
