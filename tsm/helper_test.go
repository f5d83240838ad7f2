package tsm

import (
	"io"
	"sync"
	"testing"

	"github.com/arloliu/go-bacnet/bacnet"
	"github.com/arloliu/go-bacnet/logger"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type sentPDU struct {
	dest bacnet.Address
	npdu bacnet.NPDUData
	apdu []byte
}

// recordingTransport keeps a copy of every PDU it is asked to send.
type recordingTransport struct {
	mu   sync.Mutex
	sent []sentPDU
}

func (r *recordingTransport) Send(dest *bacnet.Address, npdu *bacnet.NPDUData, apdu []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, sentPDU{dest: *dest, npdu: *npdu, apdu: append([]byte(nil), apdu...)})

	return len(apdu), nil
}

func (r *recordingTransport) sends() []sentPDU {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]sentPDU(nil), r.sent...)
}

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Send(dest *bacnet.Address, npdu *bacnet.NPDUData, apdu []byte) (int, error) {
	args := m.Called(dest, npdu, apdu)
	return args.Int(0), args.Error(1)
}

func newTestManager(t *testing.T, tr Transport, opts ...ManagerOption) *Manager {
	t.Helper()

	opts = append([]ManagerOption{WithLogger(logger.NewSlogWriter(io.Discard, logger.DebugLevel, false))}, opts...)
	cfg, err := NewManagerConfig(opts...)
	require.NoError(t, err)

	m, err := NewManager(tr, cfg)
	require.NoError(t, err)

	return m
}

func testAddress(t *testing.T, last byte) bacnet.Address {
	t.Helper()

	a, err := bacnet.NewLocalAddress([]byte{192, 168, 0, last, 0xBA, 0xC0})
	require.NoError(t, err)

	return a
}
