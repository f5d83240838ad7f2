package bip

import "sync/atomic"

// Metrics contains atomic metrics for a datalink.
// Metrics can be used as the value of a prometheus CounterFunc.
type Metrics struct {
	// TxFrameCount indicates the number of frames sent.
	TxFrameCount atomic.Uint64
	// TxByteCount indicates the number of bytes sent.
	TxByteCount atomic.Uint64
	// TxErrCount indicates the number of frames that could not be sent.
	TxErrCount atomic.Uint64
	// RxFrameCount indicates the number of frames received.
	RxFrameCount atomic.Uint64
	// RxByteCount indicates the number of bytes received.
	RxByteCount atomic.Uint64
	// RxDropCount indicates the number of received frames not delivered to the handler.
	RxDropCount atomic.Uint64
}

func (m *Metrics) incTx(n int) {
	m.TxFrameCount.Add(1)
	m.TxByteCount.Add(uint64(n)) //nolint:gosec // n >= 0
}

func (m *Metrics) incRx(n int) {
	m.RxFrameCount.Add(1)
	m.RxByteCount.Add(uint64(n)) //nolint:gosec // n >= 0
}
