package tsm

import (
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-bacnet/bacnet"
	"github.com/arloliu/go-bacnet/logger"
)

// noSlot marks an invoke ID that is not bound to any slot.
const noSlot = -1

// slot is one transaction record.
type slot struct {
	invokeID   InvokeID
	state      State
	retryCount int
	timer      time.Duration
	dest       bacnet.Address
	npdu       bacnet.NPDUData
	payload    []byte // fixed window into Manager.buf, len is the APDU length
}

// TransactionView is a read-only snapshot of a transaction.
type TransactionView struct {
	InvokeID    InvokeID
	State       State
	RetryCount  int
	Remaining   time.Duration
	Destination bacnet.Address
	NPDU        bacnet.NPDUData
	// Payload is a copy of the registered APDU; nil for a reserved transaction.
	Payload []byte
}

// Status returns the status of the viewed transaction.
func (v *TransactionView) Status() Status {
	return v.State.Status()
}

// Manager is the transaction state machine for confirmed requests.
//
// It is safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	transport Transport
	logger    logger.Logger

	requestTimeout time.Duration
	maxRetries     int
	maxAPDULength  int
	onTimeout      TimeoutHandler

	slots []slot
	// index maps an invoke ID to its slot, noSlot when unbound.
	index [int(MaxInvokeID) + 1]int16
	// free is a stack of unused slot indexes.
	free   []int16
	nextID InvokeID
	buf    []byte

	metrics Metrics
}

// NewManager creates a transaction manager that retransmits through transport.
// All memory used by the manager is allocated here.
func NewManager(transport Transport, cfg *ManagerConfig) (*Manager, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if transport == nil {
		return nil, ErrTransportNil
	}

	m := &Manager{
		transport:      transport,
		logger:         cfg.logger,
		requestTimeout: cfg.requestTimeout,
		maxRetries:     cfg.maxRetries,
		maxAPDULength:  cfg.maxAPDULength,
		onTimeout:      cfg.onTimeout,
		slots:          make([]slot, cfg.capacity),
		free:           make([]int16, 0, cfg.capacity),
		nextID:         1,
		buf:            make([]byte, cfg.capacity*cfg.maxAPDULength),
	}

	for i := range m.index {
		m.index[i] = noSlot
	}
	for i := range m.slots {
		start := i * cfg.maxAPDULength
		m.slots[i].payload = m.buf[start : start : start+cfg.maxAPDULength]
	}
	// push in reverse so that slot 0 is handed out first
	for i := cfg.capacity - 1; i >= 0; i-- {
		m.free = append(m.free, int16(i)) //nolint:gosec // capacity <= 255
	}

	return m, nil
}

// Capacity returns the number of transaction slots.
func (m *Manager) Capacity() int {
	return len(m.slots)
}

// Metrics returns the metrics of the manager.
func (m *Manager) Metrics() *Metrics {
	return &m.metrics
}

// SetTimeoutHandler replaces the handler called when a transaction exhausts
// its retries. A nil handler disables the notification.
func (m *Manager) SetTimeoutHandler(h TimeoutHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onTimeout = h
}

// RequestTimeout returns the current per-request timeout.
func (m *Manager) RequestTimeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.requestTimeout
}

// SetRequestTimeout changes the per-request timeout. It applies to timers
// armed after the call; running timers are not adjusted.
func (m *Manager) SetRequestTimeout(d time.Duration) error {
	if err := validateRequestTimeout(d); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestTimeout = d

	return nil
}

// MaxRetries returns the current number of retransmissions before a transaction fails.
func (m *Manager) MaxRetries() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.maxRetries
}

// SetMaxRetries changes the number of retransmissions before a transaction
// fails. It applies to the next retry decision of every transaction.
func (m *Manager) SetMaxRetries(n int) error {
	if err := validateMaxRetries(n); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.maxRetries = n

	return nil
}

// SetNextInvokeID moves the allocation cursor so that the next allocation
// tries id first.
func (m *Manager) SetNextInvokeID(id InvokeID) error {
	if id == 0 {
		return ErrInvalidInvokeID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID = id

	return nil
}

// NextFreeInvokeID allocates an invoke ID and reserves a transaction slot for
// it. It returns false when every slot is in use.
//
// IDs are handed out round-robin over [1, 255], skipping IDs still bound to a
// transaction. The caller owns the ID until it calls Release, also when the
// request could not be encoded or registered.
func (m *Manager) NextFreeInvokeID() (InvokeID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.free) == 0 {
		m.metrics.incAllocFailCount()
		return 0, false
	}

	// A free slot exists, so fewer than 255 IDs are bound and the walk ends
	// within one lap.
	for range int(MaxInvokeID) {
		id := m.nextID
		m.advanceCursor()
		if m.index[id] != noSlot {
			continue
		}

		idx := m.free[len(m.free)-1]
		m.free = m.free[:len(m.free)-1]
		m.index[id] = idx

		s := &m.slots[idx]
		s.invokeID = id
		s.state = StateReserved
		s.retryCount = 0
		s.timer = m.requestTimeout
		s.payload = s.payload[:0]

		m.metrics.incAllocCount()
		m.logger.Debug("tsm: invoke ID allocated", "invokeID", id, "slot", idx)

		return id, true
	}

	m.metrics.incAllocFailCount()

	return 0, false
}

func (m *Manager) advanceCursor() {
	m.nextID++
	if m.nextID == 0 {
		m.nextID = 1
	}
}

// RegisterUnsegmented records an encoded, unsegmented confirmed request for
// the allocated invoke ID and arms its timer. dest, npdu and apdu are copied.
//
// Registering again on a transaction awaiting confirmation re-arms it with
// the new request and a fresh retry budget.
func (m *Manager) RegisterUnsegmented(id InvokeID, dest *bacnet.Address, npdu *bacnet.NPDUData, apdu []byte) error {
	if id == 0 {
		return ErrInvalidInvokeID
	}
	if dest == nil {
		return ErrAddressNil
	}
	if len(apdu) == 0 {
		return ErrEmptyPayload
	}
	if len(apdu) > m.maxAPDULength {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(apdu), m.maxAPDULength)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.index[id]
	if idx == noSlot {
		return fmt.Errorf("%w: %d", ErrUnknownInvokeID, id)
	}

	s := &m.slots[idx]
	switch s.state {
	case StateFailed:
		return fmt.Errorf("%w: %d", ErrTransactionFailed, id)
	case StateReserved:
		m.metrics.incInFlightCount()
	}

	s.state = StateAwaitingConfirmation
	s.retryCount = 0
	s.timer = m.requestTimeout
	s.dest = *dest
	if npdu != nil {
		s.npdu = *npdu
	} else {
		s.npdu = bacnet.NewNPDUData(true, bacnet.PriorityNormal)
	}
	s.payload = append(s.payload[:0], apdu...)

	m.metrics.incRegisterCount()
	m.logger.Debug("tsm: request registered",
		"invokeID", id, "dest", s.dest.String(), "len", len(apdu), "timeout", s.timer)

	return nil
}

// Lookup returns a snapshot of the transaction bound to id.
func (m *Manager) Lookup(id InvokeID) (TransactionView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.slotOf(id)
	if s == nil {
		return TransactionView{}, false
	}

	view := TransactionView{
		InvokeID:    s.invokeID,
		State:       s.state,
		RetryCount:  s.retryCount,
		Remaining:   s.timer,
		Destination: s.dest,
		NPDU:        s.npdu,
	}
	if len(s.payload) > 0 {
		view.Payload = append([]byte(nil), s.payload...)
	}

	return view, true
}

// Release frees the transaction bound to id, whatever its state. Releasing
// an unknown or already released ID is a no-op.
//
// Replies to a released transaction that arrive later no longer correlate;
// reply handlers must tolerate them.
func (m *Manager) Release(id InvokeID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == 0 {
		return
	}
	idx := m.index[id]
	if idx == noSlot {
		return
	}

	s := &m.slots[idx]
	switch s.state {
	case StateAwaitingConfirmation:
		m.metrics.decInFlightCount()
	case StateFailed:
		m.metrics.decFailedCount()
	}

	m.logger.Debug("tsm: transaction released", "invokeID", id, "state", s.state.String())

	s.invokeID = 0
	s.state = StateFree
	s.retryCount = 0
	s.timer = 0
	s.payload = s.payload[:0]
	m.index[id] = noSlot
	m.free = append(m.free, idx)

	m.metrics.incReleaseCount()
}

// Status returns the status of id.
func (m *Manager) Status(id InvokeID) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.slotOf(id)
	if s == nil {
		return StatusFree
	}

	return s.state.Status()
}

// IsFree reports whether no transaction is bound to id.
func (m *Manager) IsFree(id InvokeID) bool {
	return m.Status(id) == StatusFree
}

// HasFailed reports whether the transaction bound to id exhausted its retries
// and has not been released.
func (m *Manager) HasFailed(id InvokeID) bool {
	return m.Status(id) == StatusFailed
}

// Available reports whether NextFreeInvokeID would succeed.
func (m *Manager) Available() bool {
	return m.IdleCount() > 0
}

// IdleCount returns the number of unused transaction slots.
func (m *Manager) IdleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.free)
}

// InFlight returns the number of transaction slots in use, whatever their state.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.slots) - len(m.free)
}

// slotOf returns the slot bound to id or nil. Must be called with mu held.
func (m *Manager) slotOf(id InvokeID) *slot {
	if id == 0 {
		return nil
	}
	idx := m.index[id]
	if idx == noSlot {
		return nil
	}

	return &m.slots[idx]
}
