package tsm

// InvokeID correlates a confirmed request with its reply. 0 is reserved and
// never handed out.
type InvokeID uint8

// MaxInvokeID is the largest invoke ID.
const MaxInvokeID InvokeID = 255

// State is the lifecycle state of a transaction slot.
type State uint8

const (
	// StateFree means no transaction is bound to the invoke ID.
	StateFree State = iota
	// StateReserved means the invoke ID was allocated but no request has been
	// registered yet. Reserved transactions are not ticked.
	StateReserved
	// StateAwaitingConfirmation means the request was sent and the reply is pending.
	StateAwaitingConfirmation
	// StateFailed means retries were exhausted without a reply; the invoke ID
	// stays bound until released.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "Free"
	case StateReserved:
		return "Reserved"
	case StateAwaitingConfirmation:
		return "AwaitingConfirmation"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Status reduces a State to what a sender or reply handler needs to know.
func (s State) Status() Status {
	switch s {
	case StateReserved, StateAwaitingConfirmation:
		return StatusActive
	case StateFailed:
		return StatusFailed
	default:
		return StatusFree
	}
}

// Status is the externally visible status of an invoke ID.
type Status uint8

const (
	// StatusFree means no transaction is bound to the invoke ID: it was never
	// allocated, or it was released.
	StatusFree Status = iota
	// StatusActive means the transaction is allocated or awaiting its reply.
	StatusActive
	// StatusFailed means retries were exhausted and the owner has not released
	// the invoke ID yet.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFree:
		return "Free"
	case StatusActive:
		return "Active"
	case StatusFailed:
		return "FailedPendingRelease"
	default:
		return "Unknown"
	}
}
