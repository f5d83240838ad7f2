package tsm

import "github.com/arloliu/go-bacnet/bacnet"

// Transport sends an APDU to a BACnet station. It is used by the manager to
// retransmit stored requests; the initial transmission is done by the owner.
//
// Send is called with the manager's mutex held and must not block for long or
// call back into the manager. The apdu slice is only valid for the duration of
// the call.
type Transport interface {
	Send(dest *bacnet.Address, npdu *bacnet.NPDUData, apdu []byte) (int, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(dest *bacnet.Address, npdu *bacnet.NPDUData, apdu []byte) (int, error)

// Send calls f.
func (f TransportFunc) Send(dest *bacnet.Address, npdu *bacnet.NPDUData, apdu []byte) (int, error) {
	return f(dest, npdu, apdu)
}

// TimeoutHandler is called once for every transaction that exhausts its retries.
type TimeoutHandler func(id InvokeID)
