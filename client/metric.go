package client

import "sync/atomic"

// Metrics contains atomic metrics for a client.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// RequestCount indicates the number of requests sent.
	RequestCount atomic.Uint64
	// NoInvokeIDCount indicates the number of requests refused for lack of an invoke ID.
	NoInvokeIDCount atomic.Uint64
	// ReplyCount indicates the number of replies delivered to a request.
	ReplyCount atomic.Uint64
	// NegativeReplyCount indicates the number of Error, Reject and Abort replies delivered.
	NegativeReplyCount atomic.Uint64
	// TimeoutCount indicates the number of requests that timed out.
	TimeoutCount atomic.Uint64
	// CanceledCount indicates the number of requests abandoned by their context.
	CanceledCount atomic.Uint64
	// DroppedReplyCount indicates the number of replies that matched no pending request.
	DroppedReplyCount atomic.Uint64

	// PendingCount indicates the number of requests waiting for a reply.
	PendingCount atomic.Int64
}
