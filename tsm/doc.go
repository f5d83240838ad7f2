// Package tsm implements the BACnet confirmed-service transaction state machine.
//
// A [Manager] tracks every outstanding confirmed request sent over an
// unreliable datalink: it hands out invoke IDs, keeps a verbatim copy of each
// request for retransmission, drives the retry/timeout schedule and lets reply
// handlers correlate an incoming acknowledgement with the original request.
//
// # Transaction lifecycle
//
//	Free --NextFreeInvokeID--> Reserved --RegisterUnsegmented--> AwaitingConfirmation
//	AwaitingConfirmation --Tick(timeout, retries left)--> AwaitingConfirmation (retransmit)
//	AwaitingConfirmation --Tick(timeout, no retries left)--> Failed (invoke ID retained)
//	any state --Release--> Free
//
// A failed transaction keeps its invoke ID until the owner releases it, so the
// owner can observe the failure through [Manager.HasFailed] or the timeout
// handler. Releasing is always the owner's responsibility, on success and on
// failure alike.
//
// # Memory
//
// The transaction table is sized at construction ([WithCapacity]) and never
// grows. Payload buffers for all slots are allocated up front; allocating,
// registering, ticking and releasing transactions do not allocate.
//
// # Scheduling
//
// The manager runs no goroutines. The owner calls [Manager.Tick] periodically
// with the elapsed time, typically once per iteration of its network loop. All
// methods are serialized by a single mutex; the timeout handler is called
// after the mutex is released, so it may call back into the manager.
//
// Segmentation is not supported: only unsegmented confirmed requests are
// tracked.
package tsm
