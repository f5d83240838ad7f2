package tsm

import "time"

// Tick advances the timers of all transactions awaiting confirmation by
// elapsed.
//
// A transaction whose timer runs out is retransmitted verbatim if it has
// retries left, and otherwise marked failed with its invoke ID retained. The
// timeout handler is called once for every transaction that failed during
// this tick, after the manager's mutex is released.
//
// A retransmission rejected by the transport is logged and counted; the next
// timeout retries it or fails the transaction as usual.
func (m *Manager) Tick(elapsed time.Duration) {
	if elapsed < 0 {
		elapsed = 0
	}

	var expiredBuf [int(MaxInvokeID)]InvokeID
	expired := expiredBuf[:0]

	m.mu.Lock()
	for i := range m.slots {
		s := &m.slots[i]
		if s.state != StateAwaitingConfirmation {
			continue
		}

		if s.timer > elapsed {
			s.timer -= elapsed
		} else {
			s.timer = 0
		}
		if s.timer > 0 {
			continue
		}

		if s.retryCount < m.maxRetries {
			s.retryCount++
			s.timer = m.requestTimeout
			m.retransmit(s)

			continue
		}

		s.state = StateFailed
		m.metrics.decInFlightCount()
		m.metrics.incFailedCount()
		m.metrics.incTimeoutCount()
		m.logger.Debug("tsm: transaction timed out",
			"invokeID", s.invokeID, "retries", s.retryCount, "dest", s.dest.String())

		expired = append(expired, s.invokeID)
	}
	handler := m.onTimeout
	m.mu.Unlock()

	if handler == nil {
		return
	}
	for _, id := range expired {
		handler(id)
	}
}

// retransmit resends the stored request of s. Must be called with mu held.
func (m *Manager) retransmit(s *slot) {
	m.metrics.incRetransmitCount()

	n, err := m.transport.Send(&s.dest, &s.npdu, s.payload)
	if err != nil {
		m.metrics.incRetransmitErrCount()
		m.logger.Warn("tsm: retransmission failed",
			"invokeID", s.invokeID, "retry", s.retryCount, "dest", s.dest.String(), "error", err)

		return
	}

	m.logger.Debug("tsm: request retransmitted",
		"invokeID", s.invokeID, "retry", s.retryCount, "bytes", n)
}
