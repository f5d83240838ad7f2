package bip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-bacnet/bacnet"
	"github.com/arloliu/go-bacnet/internal/pool"
	"github.com/arloliu/go-bacnet/internal/task"
	"github.com/arloliu/go-bacnet/logger"
	"github.com/arloliu/go-bacnet/tsm"
)

// Handler receives the NPDUs addressed to the local station. apdu is only
// valid during the call.
type Handler func(src bacnet.Address, npdu bacnet.NPDUData, apdu []byte)

var framePool = sync.Pool{New: func() any {
	b := make([]byte, 0, MaxFrameLength)
	return &b
}}

// Datalink is a BACnet/IP (Annex J) datalink on a UDP socket.
//
// It implements tsm.Transport. Received application PDUs are passed to the
// handler set with SetHandler; network layer messages and frames routed to
// other networks are dropped.
type Datalink struct {
	cfg     *Config
	conn    net.PacketConn
	local   bacnet.Address
	hasMAC  bool
	taskMgr *task.Manager
	handler atomic.Pointer[Handler]
	closed  atomic.Bool
	logger  logger.Logger
	metrics Metrics
}

var _ tsm.Transport = (*Datalink)(nil)

// NewDatalink opens the UDP socket described by cfg and starts receiving.
// The receive loop stops when ctx is canceled or Close is called.
func NewDatalink(ctx context.Context, cfg *Config) (*Datalink, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	conn, err := cfg.nw.ListenPacket("udp4", cfg.localAddress)
	if err != nil {
		return nil, fmt.Errorf("bip: listen on %s: %w", cfg.localAddress, err)
	}

	d := &Datalink{
		cfg:    cfg,
		conn:   conn,
		logger: cfg.logger.With("component", "bip", "local", conn.LocalAddr().String()),
	}
	d.taskMgr = task.NewManager(ctx, d.logger)

	// the MAC is only known when bound to a specific interface address
	if udpAddr, ok := conn.LocalAddr().(*net.UDPAddr); ok && !udpAddr.IP.IsUnspecified() {
		if d.local, err = AddressFromUDPAddr(udpAddr); err == nil {
			d.hasMAC = true
		}
	}

	buf := make([]byte, MaxFrameLength)
	if err := d.taskMgr.Start("bip-receiver", func() bool { return d.receive(buf) }, nil); err != nil {
		_ = conn.Close()
		return nil, err
	}

	d.logger.Info("datalink started")

	return d, nil
}

// LocalAddress returns the BACnet address of this station. It is the zero
// Address when the datalink is bound to the unspecified IP.
func (d *Datalink) LocalAddress() bacnet.Address {
	return d.local
}

// LocalAddr returns the bound UDP address.
func (d *Datalink) LocalAddr() net.Addr {
	return d.conn.LocalAddr()
}

// Metrics returns the datalink metrics.
func (d *Datalink) Metrics() *Metrics {
	return &d.metrics
}

// SetHandler sets the receive handler. Frames received without a handler are dropped.
func (d *Datalink) SetHandler(h Handler) {
	if h == nil {
		d.handler.Store(nil)
		return
	}
	d.handler.Store(&h)
}

// Send sends apdu to dest. A destination without MAC is sent as a local
// broadcast; remote destinations are sent to their router.
func (d *Datalink) Send(dest *bacnet.Address, npdu *bacnet.NPDUData, apdu []byte) (int, error) {
	if d.closed.Load() {
		return 0, ErrClosed
	}

	bufp, _ := framePool.Get().(*[]byte)
	defer framePool.Put(bufp)

	frame, to, err := d.encodeFrame((*bufp)[:0], dest, npdu, apdu)
	if err != nil {
		d.metrics.TxErrCount.Add(1)
		return 0, err
	}
	*bufp = frame[:0]

	n, err := d.conn.WriteTo(frame, to)
	if err != nil {
		d.metrics.TxErrCount.Add(1)
		return n, fmt.Errorf("bip: send to %s: %w", to, err)
	}
	d.metrics.incTx(n)

	return n, nil
}

// encodeFrame appends the BVLL frame for apdu to b and returns it with the
// UDP destination.
func (d *Datalink) encodeFrame(b []byte, dest *bacnet.Address, npdu *bacnet.NPDUData, apdu []byte) ([]byte, *net.UDPAddr, error) {
	if dest == nil {
		return b, nil, fmt.Errorf("%w: nil destination", ErrInvalidMAC)
	}
	if npdu == nil {
		data := bacnet.NewNPDUData(false, bacnet.PriorityNormal)
		npdu = &data
	}

	fn := FunctionOriginalUnicastNPDU
	to := d.cfg.broadcastAddress
	if dest.MACLen == 0 {
		fn = FunctionOriginalBroadcastNPDU
	} else {
		var err error
		if to, err = UDPAddrFromMAC(dest.MACBytes()); err != nil {
			return b, nil, err
		}
	}

	b = append(b, 0, 0, 0, 0)
	b = bacnet.AppendNPDU(b, dest, nil, npdu)
	b = append(b, apdu...)

	// the header is fixed size, rewrite it in place
	if _, err := AppendHeader(b[:0], fn, nil, len(b)-headerLength); err != nil {
		return b, nil, err
	}

	return b, to, nil
}

// Close stops the receive loop and closes the socket.
func (d *Datalink) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	d.taskMgr.Stop()
	err := d.conn.Close()

	done := make(chan struct{})
	go func() {
		d.taskMgr.Wait()
		close(done)
	}()
	if !pool.WaitTimeout(done, d.cfg.closeTimeout) {
		d.logger.Warn("receive loop did not exit in time", "timeout", d.cfg.closeTimeout)
	}

	d.logger.Info("datalink closed")

	return err
}

func (d *Datalink) receive(buf []byte) bool {
	n, from, err := d.conn.ReadFrom(buf)
	if err != nil {
		if d.closed.Load() || errors.Is(err, net.ErrClosed) {
			return false
		}
		d.logger.Warn("read failed", "error", err)

		return true
	}
	d.metrics.incRx(n)

	udpFrom, ok := from.(*net.UDPAddr)
	if !ok {
		d.drop("unexpected peer address type", "from", from)
		return true
	}
	d.handleFrame(buf[:n], udpFrom)

	return true
}

func (d *Datalink) handleFrame(frame []byte, from *net.UDPAddr) {
	hdr, payload, err := DecodeBVLC(frame)
	if err != nil {
		d.drop("invalid BVLC", "from", from, "error", err)
		return
	}
	if !hdr.Function.deliversNPDU() {
		d.drop("BVLL message ignored", "from", from, "function", hdr.Function.String())
		return
	}

	var srcMAC [macLength]byte
	if hdr.Function == FunctionForwardedNPDU {
		srcMAC = hdr.Origin
	} else if srcMAC, err = MACFromUDPAddr(from); err != nil {
		d.drop("invalid source", "from", from, "error", err)
		return
	}
	if d.hasMAC && string(srcMAC[:]) == string(d.local.MACBytes()) {
		d.metrics.RxDropCount.Add(1)
		return
	}

	nh, err := bacnet.DecodeNPDU(payload)
	if err != nil {
		d.drop("invalid NPDU", "from", from, "error", err)
		return
	}
	if nh.Data.NetworkLayerMessage {
		d.drop("network layer message ignored", "from", from, "type", nh.Data.NetworkMessageType)
		return
	}
	if nh.HasDest && nh.Dest.Net != bacnet.GlobalBroadcastNetwork {
		d.drop("routed message ignored", "from", from, "dnet", nh.Dest.Net)
		return
	}

	src, err := bacnet.NewLocalAddress(srcMAC[:])
	if nh.HasSrc {
		src, err = bacnet.NewRemoteAddress(srcMAC[:], nh.Src.Net, nh.Src.AdrBytes())
	}
	if err != nil {
		d.drop("invalid source address", "from", from, "error", err)
		return
	}

	apdu := payload[nh.Len:]
	if len(apdu) == 0 {
		d.drop("empty APDU", "from", from)
		return
	}

	h := d.handler.Load()
	if h == nil {
		d.drop("no handler", "from", from)
		return
	}
	(*h)(src, nh.Data, apdu)
}

func (d *Datalink) drop(reason string, keysAndValues ...any) {
	d.metrics.RxDropCount.Add(1)
	d.logger.Debug("bip: frame dropped: "+reason, keysAndValues...)
}
