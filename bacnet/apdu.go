package bacnet

import "fmt"

// ConfirmedRequestHeader is the fixed header of an unsegmented confirmed request.
type ConfirmedRequestHeader struct {
	InvokeID                 uint8
	Service                  ConfirmedService
	MaxAPDU                  int
	SegmentedResponseAllowed bool
}

// AppendConfirmedRequest appends an unsegmented confirmed request APDU carrying
// the given service data to b. maxAPDU is the largest reply this station accepts.
func AppendConfirmedRequest(b []byte, invokeID uint8, maxAPDU int, service ConfirmedService, data []byte) []byte {
	b = append(b,
		byte(PDUTypeConfirmedRequest),
		EncodeMaxAPDU(maxAPDU),
		invokeID,
		byte(service),
	)

	return append(b, data...)
}

// DecodeConfirmedRequest decodes the header of a confirmed request and returns
// it with the service data that follows.
func DecodeConfirmedRequest(apdu []byte) (ConfirmedRequestHeader, []byte, error) {
	var h ConfirmedRequestHeader
	if len(apdu) < 1 {
		return h, nil, ErrShortBuffer
	}
	if PDUTypeOf(apdu[0]) != PDUTypeConfirmedRequest {
		return h, nil, ErrNotConfirmedRequest
	}
	if apdu[0]&pciSegmented != 0 {
		return h, nil, ErrSegmentationUnsupported
	}
	if len(apdu) < confirmedHeaderLength {
		return h, nil, ErrShortBuffer
	}

	h.SegmentedResponseAllowed = apdu[0]&pciSegmentedAccepted != 0
	h.MaxAPDU = DecodeMaxAPDU(apdu[1] & pciMaxAPDUMask)
	h.InvokeID = apdu[2]
	h.Service = ConfirmedService(apdu[3])

	return h, apdu[confirmedHeaderLength:], nil
}

// ReplyHeader is the decoded header of a reply to a confirmed request.
type ReplyHeader struct {
	Type     PDUType
	InvokeID uint8
	// Service is set for SimpleACK, ComplexACK and Error.
	Service ConfirmedService
	// Reason is set for Reject and Abort.
	Reason uint8
	// Server is set for an Abort sent by the server.
	Server bool
	// Len is the offset of the service data in the APDU.
	Len int
}

// DecodeReplyHeader decodes the header of a SimpleACK, ComplexACK, Error,
// Reject or Abort APDU.
func DecodeReplyHeader(apdu []byte) (ReplyHeader, error) {
	var h ReplyHeader
	if len(apdu) < 1 {
		return h, ErrShortBuffer
	}

	h.Type = PDUTypeOf(apdu[0])
	switch h.Type {
	case PDUTypeSimpleAck, PDUTypeError:
		if len(apdu) < 3 {
			return h, ErrShortBuffer
		}
		h.InvokeID = apdu[1]
		h.Service = ConfirmedService(apdu[2])
		h.Len = 3

	case PDUTypeComplexAck:
		if apdu[0]&pciSegmented != 0 {
			return h, ErrSegmentationUnsupported
		}
		if len(apdu) < 3 {
			return h, ErrShortBuffer
		}
		h.InvokeID = apdu[1]
		h.Service = ConfirmedService(apdu[2])
		h.Len = 3

	case PDUTypeReject, PDUTypeAbort:
		if len(apdu) < 3 {
			return h, ErrShortBuffer
		}
		h.InvokeID = apdu[1]
		h.Reason = apdu[2]
		h.Server = h.Type == PDUTypeAbort && apdu[0]&pciAbortFromServer != 0
		h.Len = 3

	case PDUTypeSegmentAck:
		return h, ErrSegmentationUnsupported

	default:
		return h, fmt.Errorf("%w: %s", ErrNotReply, h.Type)
	}

	return h, nil
}

// AppendSimpleAck appends a SimpleACK APDU to b.
func AppendSimpleAck(b []byte, invokeID uint8, service ConfirmedService) []byte {
	return append(b, byte(PDUTypeSimpleAck), invokeID, byte(service))
}

// AppendComplexAck appends an unsegmented ComplexACK APDU to b.
func AppendComplexAck(b []byte, invokeID uint8, service ConfirmedService, data []byte) []byte {
	b = append(b, byte(PDUTypeComplexAck), invokeID, byte(service))
	return append(b, data...)
}

// AppendError appends an Error APDU with the given error class and code to b.
func AppendError(b []byte, invokeID uint8, service ConfirmedService, class, code uint32) []byte {
	b = append(b, byte(PDUTypeError), invokeID, byte(service))
	b = AppendEnumerated(b, class)
	return AppendEnumerated(b, code)
}

// AppendReject appends a Reject APDU to b.
func AppendReject(b []byte, invokeID uint8, reason RejectReason) []byte {
	return append(b, byte(PDUTypeReject), invokeID, byte(reason))
}

// AppendAbort appends an Abort APDU to b.
func AppendAbort(b []byte, invokeID uint8, reason AbortReason, server bool) []byte {
	first := byte(PDUTypeAbort)
	if server {
		first |= pciAbortFromServer
	}

	return append(b, first, invokeID, byte(reason))
}

// DecodeErrorClassCode decodes the error class and error code that form the
// body of an Error APDU.
func DecodeErrorClassCode(data []byte) (class, code uint32, err error) {
	class, n, err := DecodeEnumerated(data)
	if err != nil {
		return 0, 0, err
	}
	code, _, err = DecodeEnumerated(data[n:])
	if err != nil {
		return 0, 0, err
	}

	return class, code, nil
}
