package bacnet

import "errors"

var (
	// ErrShortBuffer indicates that a PDU is shorter than its header requires.
	ErrShortBuffer = errors.New("bacnet: buffer too short")

	// ErrInvalidVersion indicates an NPDU with a protocol version other than 1.
	ErrInvalidVersion = errors.New("bacnet: invalid NPDU protocol version")

	// ErrInvalidAddressLength indicates a MAC or remote address longer than MaxMACLen.
	ErrInvalidAddressLength = errors.New("bacnet: invalid address length")

	// ErrNotReply indicates that an APDU is not a reply to a confirmed request.
	ErrNotReply = errors.New("bacnet: APDU is not a confirmed service reply")

	// ErrNotConfirmedRequest indicates that an APDU is not a confirmed request.
	ErrNotConfirmedRequest = errors.New("bacnet: APDU is not a confirmed request")

	// ErrSegmentationUnsupported indicates a segmented PDU; segmentation is not implemented.
	ErrSegmentationUnsupported = errors.New("bacnet: segmented messages are not supported")

	// ErrInvalidTag indicates a malformed application or context tag.
	ErrInvalidTag = errors.New("bacnet: invalid tag")
)
