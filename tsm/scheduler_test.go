package tsm

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/arloliu/go-bacnet/bacnet"
	"github.com/arloliu/go-bacnet/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// sendInitial performs the caller side initial transmission of a registered request.
func sendInitial(t *testing.T, m *Manager, tr Transport, id InvokeID) {
	t.Helper()

	view, ok := m.Lookup(id)
	require.True(t, ok)
	_, err := tr.Send(&view.Destination, &view.NPDU, view.Payload)
	require.NoError(t, err)
}

func TestTick_RetryLaw(t *testing.T) {
	tests := []struct {
		retries int
		timeout time.Duration
	}{
		{0, 10 * time.Millisecond},
		{1, 50 * time.Millisecond},
		{3, 100 * time.Millisecond},
		{5, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("R=%d,T=%v", tt.retries, tt.timeout), func(t *testing.T) {
			tr := &recordingTransport{}
			var fired []InvokeID
			m := newTestManager(t, tr,
				WithMaxRetries(tt.retries),
				WithRequestTimeout(tt.timeout),
				WithTimeoutHandler(func(id InvokeID) { fired = append(fired, id) }),
			)
			dest := testAddress(t, 20)
			npdu := bacnet.NewNPDUData(true, bacnet.PriorityNormal)
			payload := []byte{0x00, 0x05, 0x09, 0x0C, 0x0C, 0x00, 0x00, 0x00, 0x01, 0x19, 0x55}

			id, ok := m.NextFreeInvokeID()
			require.True(t, ok)
			require.NoError(t, m.RegisterUnsegmented(id, &dest, &npdu, payload))
			sendInitial(t, m, tr, id)

			// R full timeouts retransmit, in half-timeout steps
			for range 2 * tt.retries {
				m.Tick(tt.timeout / 2)
				require.False(t, m.HasFailed(id))
			}
			require.Len(t, tr.sends(), tt.retries+1)
			require.Empty(t, fired)

			// one tick past the last retry fails the transaction
			m.Tick(tt.timeout)
			assert.True(t, m.HasFailed(id))
			assert.Equal(t, StatusFailed, m.Status(id))
			assert.False(t, m.IsFree(id))
			assert.Equal(t, []InvokeID{id}, fired)

			// further ticks neither resend nor notify again
			m.Tick(10 * tt.timeout)
			m.Tick(10 * tt.timeout)
			assert.Equal(t, []InvokeID{id}, fired)

			sends := tr.sends()
			require.Len(t, sends, tt.retries+1)
			for _, s := range sends {
				assert.Equal(t, payload, s.apdu)
				assert.True(t, dest.Equal(&s.dest))
				assert.Equal(t, npdu, s.npdu)
			}

			metrics := m.Metrics()
			assert.Equal(t, uint64(tt.retries), metrics.RetransmitCount.Load())
			assert.Equal(t, uint64(1), metrics.TimeoutCount.Load())
			assert.Equal(t, int64(0), metrics.InFlightCount.Load())
			assert.Equal(t, int64(1), metrics.FailedCount.Load())

			m.Release(id)
			assert.True(t, m.IsFree(id))
			assert.Equal(t, int64(0), metrics.FailedCount.Load())
		})
	}
}

func TestTick_ConcreteScenario(t *testing.T) {
	tr := &recordingTransport{}
	var fired []InvokeID
	m := newTestManager(t, tr,
		WithCapacity(2),
		WithMaxRetries(3),
		WithRequestTimeout(100*time.Millisecond),
		WithTimeoutHandler(func(id InvokeID) { fired = append(fired, id) }),
	)
	dest := testAddress(t, 0x44)
	npdu := bacnet.NewNPDUData(true, bacnet.PriorityNormal)

	id1, ok := m.NextFreeInvokeID()
	require.True(t, ok)
	require.Equal(t, InvokeID(1), id1)
	require.NoError(t, m.RegisterUnsegmented(id1, &dest, &npdu, []byte{0xAB, 0xCD}))
	sendInitial(t, m, tr, id1)

	id2, ok := m.NextFreeInvokeID()
	require.True(t, ok)
	require.Equal(t, InvokeID(2), id2)

	_, ok = m.NextFreeInvokeID()
	require.False(t, ok)

	for i := range 4 {
		require.False(t, m.HasFailed(id1), "tick %d", i)
		m.Tick(100 * time.Millisecond)
	}
	assert.True(t, m.HasFailed(id1))
	assert.Equal(t, []InvokeID{id1}, fired)

	sends := tr.sends()
	require.Len(t, sends, 4)
	for _, s := range sends {
		assert.Equal(t, []byte{0xAB, 0xCD}, s.apdu)
		assert.True(t, dest.Equal(&s.dest))
	}

	// the reserved but unregistered transaction is not ticked
	assert.Equal(t, StatusActive, m.Status(id2))

	m.Release(id1)
	id3, ok := m.NextFreeInvokeID()
	require.True(t, ok)
	assert.NotEqual(t, id2, id3)
	assert.Equal(t, InvokeID(3), id3)
}

func TestTick_FloorsAtZero(t *testing.T) {
	tr := &recordingTransport{}
	m := newTestManager(t, tr, WithMaxRetries(1), WithRequestTimeout(100*time.Millisecond))
	dest := testAddress(t, 1)

	id, _ := m.NextFreeInvokeID()
	require.NoError(t, m.RegisterUnsegmented(id, &dest, nil, []byte{0x01}))

	m.Tick(30 * time.Millisecond)
	view, _ := m.Lookup(id)
	assert.Equal(t, 70*time.Millisecond, view.Remaining)

	m.Tick(-time.Second)
	view, _ = m.Lookup(id)
	assert.Equal(t, 70*time.Millisecond, view.Remaining)

	// overshooting by far still counts as a single timeout
	m.Tick(time.Hour)
	view, _ = m.Lookup(id)
	assert.Equal(t, StateAwaitingConfirmation, view.State)
	assert.Equal(t, 1, view.RetryCount)
	assert.Equal(t, 100*time.Millisecond, view.Remaining)
	assert.Len(t, tr.sends(), 1)
}

func TestTick_ReservedAndReleasedAreIgnored(t *testing.T) {
	tr := &recordingTransport{}
	m := newTestManager(t, tr, WithMaxRetries(0), WithRequestTimeout(time.Millisecond))
	dest := testAddress(t, 1)

	reserved, _ := m.NextFreeInvokeID()
	released, _ := m.NextFreeInvokeID()
	require.NoError(t, m.RegisterUnsegmented(released, &dest, nil, []byte{0x01}))
	m.Release(released)

	m.Tick(time.Second)
	assert.Equal(t, StatusActive, m.Status(reserved))
	assert.True(t, m.IsFree(released))
	assert.Empty(t, tr.sends())
	assert.Zero(t, m.Metrics().TimeoutCount.Load())
}

func TestTick_IndependentTimers(t *testing.T) {
	tr := &recordingTransport{}
	var fired []InvokeID
	m := newTestManager(t, tr,
		WithMaxRetries(1),
		WithRequestTimeout(100*time.Millisecond),
		WithTimeoutHandler(func(id InvokeID) { fired = append(fired, id) }),
	)
	destA := testAddress(t, 1)
	destB := testAddress(t, 2)

	a, _ := m.NextFreeInvokeID()
	require.NoError(t, m.RegisterUnsegmented(a, &destA, nil, []byte{0xA}))
	m.Tick(50 * time.Millisecond)

	b, _ := m.NextFreeInvokeID()
	require.NoError(t, m.RegisterUnsegmented(b, &destB, nil, []byte{0xB}))

	m.Tick(50 * time.Millisecond) // a retransmits
	m.Tick(50 * time.Millisecond) // b retransmits
	m.Tick(50 * time.Millisecond) // a fails
	assert.Equal(t, []InvokeID{a}, fired)
	m.Tick(50 * time.Millisecond) // b fails
	assert.Equal(t, []InvokeID{a, b}, fired)

	sends := tr.sends()
	require.Len(t, sends, 2)
	assert.Equal(t, []byte{0xA}, sends[0].apdu)
	assert.Equal(t, []byte{0xB}, sends[1].apdu)
}

func TestTick_TransportErrorIsRetriedOnSchedule(t *testing.T) {
	tr := &mockTransport{}
	tr.On("Send", mock.Anything, mock.Anything, []byte{0x01, 0x02}).
		Return(0, errors.New("network unreachable")).Twice()

	l := logger.NewMockLogger().Allow("Debug")
	l.On("Warn", "tsm: retransmission failed", mock.Anything).Twice()

	var fired []InvokeID
	m := newTestManager(t, tr,
		WithLogger(l),
		WithMaxRetries(2),
		WithRequestTimeout(10*time.Millisecond),
		WithTimeoutHandler(func(id InvokeID) { fired = append(fired, id) }),
	)
	dest := testAddress(t, 1)

	id, _ := m.NextFreeInvokeID()
	require.NoError(t, m.RegisterUnsegmented(id, &dest, nil, []byte{0x01, 0x02}))

	m.Tick(10 * time.Millisecond)
	assert.False(t, m.HasFailed(id))
	m.Tick(10 * time.Millisecond)
	assert.False(t, m.HasFailed(id))
	m.Tick(10 * time.Millisecond)
	assert.True(t, m.HasFailed(id))
	assert.Equal(t, []InvokeID{id}, fired)

	tr.AssertExpectations(t)
	l.AssertExpectations(t)
	assert.Equal(t, uint64(2), m.Metrics().RetransmitCount.Load())
	assert.Equal(t, uint64(2), m.Metrics().RetransmitErrCount.Load())
}

func TestTick_HandlerMayCallBackIntoManager(t *testing.T) {
	tr := &recordingTransport{}
	m := newTestManager(t, tr, WithMaxRetries(0), WithRequestTimeout(time.Millisecond))

	var failedInHandler bool
	m.SetTimeoutHandler(func(id InvokeID) {
		failedInHandler = m.HasFailed(id)
		m.Release(id)
	})

	dest := testAddress(t, 1)
	id, _ := m.NextFreeInvokeID()
	require.NoError(t, m.RegisterUnsegmented(id, &dest, nil, []byte{0x01}))

	done := make(chan struct{})
	go func() {
		m.Tick(time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Tick deadlocked while calling the timeout handler")
	}
	assert.True(t, failedInHandler)
	assert.True(t, m.IsFree(id))
	assert.Equal(t, m.Capacity(), m.IdleCount())
}

func TestTick_NilHandler(t *testing.T) {
	m := newTestManager(t, &recordingTransport{}, WithMaxRetries(0), WithRequestTimeout(time.Millisecond))
	m.SetTimeoutHandler(nil)

	dest := testAddress(t, 1)
	id, _ := m.NextFreeInvokeID()
	require.NoError(t, m.RegisterUnsegmented(id, &dest, nil, []byte{0x01}))

	assert.NotPanics(t, func() { m.Tick(time.Millisecond) })
	assert.True(t, m.HasFailed(id))
}

func TestTick_MaxRetriesChangedAtRuntime(t *testing.T) {
	tr := &recordingTransport{}
	m := newTestManager(t, tr, WithMaxRetries(5), WithRequestTimeout(10*time.Millisecond))

	dest := testAddress(t, 1)
	id, _ := m.NextFreeInvokeID()
	require.NoError(t, m.RegisterUnsegmented(id, &dest, nil, []byte{0x01}))

	m.Tick(10 * time.Millisecond)
	m.Tick(10 * time.Millisecond)
	require.Len(t, tr.sends(), 2)

	require.NoError(t, m.SetMaxRetries(2))
	m.Tick(10 * time.Millisecond)
	assert.True(t, m.HasFailed(id))
	assert.Len(t, tr.sends(), 2)
}

func TestTransportFunc(t *testing.T) {
	var got []byte
	var tr Transport = TransportFunc(func(_ *bacnet.Address, _ *bacnet.NPDUData, apdu []byte) (int, error) {
		got = apdu
		return len(apdu), nil
	})

	n, err := tr.Send(&bacnet.Address{}, &bacnet.NPDUData{}, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3}, got)
}
