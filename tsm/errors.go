package tsm

import "errors"

var (
	// ErrConfigNil indicates that a nil ManagerConfig was provided.
	ErrConfigNil = errors.New("tsm: manager config is nil")

	// ErrTransportNil indicates that a nil Transport was provided.
	ErrTransportNil = errors.New("tsm: transport is nil")

	// ErrInvalidInvokeID indicates the reserved invoke ID 0.
	ErrInvalidInvokeID = errors.New("tsm: invalid invoke ID 0")

	// ErrUnknownInvokeID indicates that no transaction is bound to the invoke ID.
	// The ID must be obtained from NextFreeInvokeID before registering.
	ErrUnknownInvokeID = errors.New("tsm: invoke ID is not allocated")

	// ErrTransactionFailed indicates an attempt to register on a transaction that
	// exhausted its retries and has not been released yet.
	ErrTransactionFailed = errors.New("tsm: transaction failed and is pending release")

	// ErrPayloadTooLarge indicates an APDU longer than the configured maximum APDU length.
	ErrPayloadTooLarge = errors.New("tsm: payload exceeds maximum APDU length")

	// ErrEmptyPayload indicates an attempt to register an empty APDU.
	ErrEmptyPayload = errors.New("tsm: payload is empty")

	// ErrAddressNil indicates that a nil destination address was provided.
	ErrAddressNil = errors.New("tsm: destination address is nil")
)
