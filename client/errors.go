package client

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-bacnet/bacnet"
)

var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("client: config is nil")

	// ErrTransportNil indicates that a nil transport was provided.
	ErrTransportNil = errors.New("client: transport is nil")

	// ErrClosed indicates a request on a closed client, or one pending when it was closed.
	ErrClosed = errors.New("client: closed")

	// ErrNoInvokeID indicates that every invoke ID is in use.
	ErrNoInvokeID = errors.New("client: no free invoke ID")

	// ErrReplyTimeout indicates that no reply arrived after all retries.
	ErrReplyTimeout = errors.New("client: reply timeout")

	// ErrServiceError indicates an Error reply.
	ErrServiceError = errors.New("client: service error")

	// ErrRejected indicates a Reject reply.
	ErrRejected = errors.New("client: request rejected")

	// ErrAborted indicates an Abort reply.
	ErrAborted = errors.New("client: request aborted")
)

// ReplyError describes a negative reply. It wraps ErrServiceError, ErrRejected
// or ErrAborted according to Type.
type ReplyError struct {
	Type    bacnet.PDUType
	Service bacnet.ConfirmedService
	// Class and Code are set for an Error reply.
	Class uint32
	Code  uint32
	// Reason is set for Reject and Abort replies.
	Reason uint8
	// Server is set for an Abort sent by the server.
	Server bool
}

func (e *ReplyError) Error() string {
	switch e.Type {
	case bacnet.PDUTypeError:
		return fmt.Sprintf("%s: %s class=%d code=%d", ErrServiceError, e.Service, e.Class, e.Code)
	case bacnet.PDUTypeReject:
		return fmt.Sprintf("%s: reason=%d", ErrRejected, e.Reason)
	default:
		return fmt.Sprintf("%s: reason=%d server=%t", ErrAborted, e.Reason, e.Server)
	}
}

func (e *ReplyError) Unwrap() error {
	switch e.Type {
	case bacnet.PDUTypeError:
		return ErrServiceError
	case bacnet.PDUTypeReject:
		return ErrRejected
	default:
		return ErrAborted
	}
}
