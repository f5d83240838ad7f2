package client

import (
	"github.com/arloliu/go-bacnet/bacnet"
)

// Reply is the reply to a confirmed request.
type Reply struct {
	Header bacnet.ReplyHeader
	Source bacnet.Address
	// Data is the service data following the reply header: the ComplexACK
	// payload or the Error class and code.
	Data []byte
}

// Err returns a *ReplyError for Error, Reject and Abort replies and nil for
// acknowledgements.
func (r *Reply) Err() error {
	switch r.Header.Type {
	case bacnet.PDUTypeSimpleAck, bacnet.PDUTypeComplexAck:
		return nil
	case bacnet.PDUTypeError:
		e := &ReplyError{Type: r.Header.Type, Service: r.Header.Service}
		// a malformed body still reports the error, with class and code 0
		e.Class, e.Code, _ = bacnet.DecodeErrorClassCode(r.Data)

		return e
	default:
		return &ReplyError{Type: r.Header.Type, Reason: r.Header.Reason, Server: r.Header.Server}
	}
}
