package tsm

import "sync/atomic"

// Metrics contains atomic metrics for a transaction manager.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// AllocCount indicates the number of invoke IDs handed out.
	AllocCount atomic.Uint64
	// AllocFailCount indicates the number of allocations refused because the table was full.
	AllocFailCount atomic.Uint64
	// RegisterCount indicates the number of registered requests.
	RegisterCount atomic.Uint64
	// RetransmitCount indicates the number of retransmissions attempted.
	RetransmitCount atomic.Uint64
	// RetransmitErrCount indicates the number of retransmissions the transport rejected.
	RetransmitErrCount atomic.Uint64
	// TimeoutCount indicates the number of transactions that exhausted their retries.
	TimeoutCount atomic.Uint64
	// ReleaseCount indicates the number of released transactions.
	ReleaseCount atomic.Uint64

	// InFlightCount indicates the number of transactions awaiting confirmation.
	InFlightCount atomic.Int64
	// FailedCount indicates the number of failed transactions pending release.
	FailedCount atomic.Int64
}

func (m *Metrics) incAllocCount() {
	m.AllocCount.Add(1)
}

func (m *Metrics) incAllocFailCount() {
	m.AllocFailCount.Add(1)
}

func (m *Metrics) incRegisterCount() {
	m.RegisterCount.Add(1)
}

func (m *Metrics) incRetransmitCount() {
	m.RetransmitCount.Add(1)
}

func (m *Metrics) incRetransmitErrCount() {
	m.RetransmitErrCount.Add(1)
}

func (m *Metrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *Metrics) incReleaseCount() {
	m.ReleaseCount.Add(1)
}

func (m *Metrics) incInFlightCount() {
	m.InFlightCount.Add(1)
}

func (m *Metrics) decInFlightCount() {
	m.InFlightCount.Add(-1)
}

func (m *Metrics) incFailedCount() {
	m.FailedCount.Add(1)
}

func (m *Metrics) decFailedCount() {
	m.FailedCount.Add(-1)
}
