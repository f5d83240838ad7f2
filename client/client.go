// Package client issues BACnet confirmed requests and correlates their replies.
//
// A Client owns a tsm.Manager and advances its retry timers from a background
// tick loop. Any number of goroutines may call Request concurrently; each
// request holds one invoke ID until it returns.
//
//	dl, _ := bip.NewDatalink(ctx, bipCfg)
//	cli, _ := client.New(ctx, dl, cfg)
//	dl.SetHandler(cli.HandleAPDU)
//	reply, err := cli.Request(ctx, &dest, nil, bacnet.ServiceReadProperty, data)
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-bacnet/bacnet"
	"github.com/arloliu/go-bacnet/internal/pool"
	"github.com/arloliu/go-bacnet/internal/task"
	"github.com/arloliu/go-bacnet/logger"
	"github.com/arloliu/go-bacnet/tsm"
	"github.com/puzpuzpuz/xsync/v3"
)

const tickTaskName = "tsm-tick"

type result struct {
	reply *Reply
	err   error
}

// Client sends confirmed requests through a transport.
type Client struct {
	cfg       *Config
	transport tsm.Transport
	tsm       *tsm.Manager
	waiters   *xsync.MapOf[tsm.InvokeID, chan result]
	taskMgr   *task.Manager
	done      chan struct{}
	tickMu    sync.Mutex
	lastTick  time.Time
	closed    atomic.Bool
	logger    logger.Logger
	metrics   Metrics
}

// New creates a client sending through transport and starts its tick loop.
// The tick loop stops when ctx is canceled or Close is called.
func New(ctx context.Context, transport tsm.Transport, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if transport == nil {
		return nil, ErrTransportNil
	}

	mgr, err := tsm.NewManager(transport, cfg.tsmCfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		transport: transport,
		tsm:       mgr,
		waiters:   xsync.NewMapOf[tsm.InvokeID, chan result](),
		done:      make(chan struct{}),
		logger:    cfg.logger.With("component", "client"),
	}
	c.taskMgr = task.NewManager(ctx, c.logger)
	mgr.SetTimeoutHandler(c.onTimeout)

	c.lastTick = time.Now()
	err = c.taskMgr.StartInterval(tickTaskName, func() bool {
		c.tickMu.Lock()
		c.tickLocked()
		c.tickMu.Unlock()

		return true
	}, cfg.tickInterval, false)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// TSM returns the transaction manager of the client.
func (c *Client) TSM() *tsm.Manager {
	return c.tsm
}

// Metrics returns the client metrics.
func (c *Client) Metrics() *Metrics {
	return &c.metrics
}

// Request sends a confirmed request for service with the encoded service
// data to dest and waits for the reply.
//
// A nil npdu sends with normal priority. Error, Reject and Abort replies are
// returned together with their *ReplyError. Request returns ErrNoInvokeID
// when too many requests are pending and ErrReplyTimeout once all retries
// went unanswered. Nothing is sent when ctx is already done.
func (c *Client) Request(ctx context.Context, dest *bacnet.Address, npdu *bacnet.NPDUData, service bacnet.ConfirmedService, data []byte) (*Reply, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if dest == nil {
		return nil, tsm.ErrAddressNil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var meta bacnet.NPDUData
	if npdu != nil {
		meta = *npdu
	} else {
		meta = bacnet.NewNPDUData(true, bacnet.PriorityNormal)
	}
	meta.DataExpectingReply = true

	id, ok := c.tsm.NextFreeInvokeID()
	if !ok {
		c.metrics.NoInvokeIDCount.Add(1)
		return nil, ErrNoInvokeID
	}
	defer c.tsm.Release(id)

	ch := make(chan result, 1)
	c.waiters.Store(id, ch)
	defer c.waiters.Delete(id)

	apdu := bacnet.AppendConfirmedRequest(make([]byte, 0, 4+len(data)), uint8(id), c.cfg.maxAPDU(), service, data)
	if err := c.register(id, dest, &meta, apdu); err != nil {
		return nil, err
	}

	if _, err := c.transport.Send(dest, &meta, apdu); err != nil {
		return nil, fmt.Errorf("client: send %s to %s: %w", service, dest, err)
	}
	c.metrics.RequestCount.Add(1)
	c.metrics.PendingCount.Add(1)
	defer c.metrics.PendingCount.Add(-1)

	c.logger.Debug("request sent", "invokeID", id, "service", service.String(), "dest", dest.String())

	select {
	case res := <-ch:
		return res.reply, res.err

	case <-ctx.Done():
		c.metrics.CanceledCount.Add(1)
		return nil, ctx.Err()

	case <-c.done:
		return nil, ErrClosed
	}
}

// HandleAPDU delivers a received APDU to the request it answers. It has the
// signature of a datalink receive handler. APDUs that are not replies, or
// that match no pending request from src, are dropped.
func (c *Client) HandleAPDU(src bacnet.Address, _ bacnet.NPDUData, apdu []byte) {
	hdr, err := bacnet.DecodeReplyHeader(apdu)
	if err != nil {
		if !errors.Is(err, bacnet.ErrNotReply) {
			c.dropReply("undecodable reply", "src", src.String(), "error", err)
		}

		return
	}

	id := tsm.InvokeID(hdr.InvokeID)
	view, ok := c.tsm.Lookup(id)
	if !ok || view.State != tsm.StateAwaitingConfirmation {
		c.dropReply("no pending request", "src", src.String(), "invokeID", id, "type", hdr.Type.String())
		return
	}
	if !view.Destination.Equal(&src) {
		c.dropReply("source mismatch", "src", src.String(), "invokeID", id, "expected", view.Destination.String())
		return
	}
	if hdr.Type != bacnet.PDUTypeReject && hdr.Type != bacnet.PDUTypeAbort &&
		requestService(view.Payload) != hdr.Service {
		c.dropReply("service mismatch", "src", src.String(), "invokeID", id, "service", hdr.Service.String())
		return
	}

	ch, ok := c.waiters.LoadAndDelete(id)
	if !ok {
		c.dropReply("duplicate reply", "src", src.String(), "invokeID", id)
		return
	}

	reply := &Reply{
		Header: hdr,
		Source: src,
		Data:   append([]byte(nil), apdu[hdr.Len:]...),
	}
	replyErr := reply.Err()
	c.metrics.ReplyCount.Add(1)
	if replyErr != nil {
		c.metrics.NegativeReplyCount.Add(1)
	}

	ch <- result{reply: reply, err: replyErr}
}

// Close stops the tick loop. Pending requests return ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(c.done)

	if err := c.taskMgr.StopInterval(tickTaskName); err != nil {
		c.logger.Debug("tick loop already stopped", "error", err)
	}
	c.taskMgr.Stop()
	stopped := make(chan struct{})
	go func() {
		c.taskMgr.Wait()
		close(stopped)
	}()
	if !pool.WaitTimeout(stopped, c.cfg.closeTimeout) {
		c.logger.Warn("tick loop did not exit in time", "timeout", c.cfg.closeTimeout)
	}

	return nil
}

// register arms the request timer of id on a tick boundary, so that the next
// tick charges the request only for time elapsed after registration.
func (c *Client) register(id tsm.InvokeID, dest *bacnet.Address, npdu *bacnet.NPDUData, apdu []byte) error {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	c.tickLocked()

	return c.tsm.RegisterUnsegmented(id, dest, npdu, apdu)
}

// tickLocked advances the transaction timers by the time elapsed since the
// previous tick. Must be called with tickMu held.
func (c *Client) tickLocked() {
	now := time.Now()
	c.tsm.Tick(now.Sub(c.lastTick))
	c.lastTick = now
}

// onTimeout is the timeout handler of the transaction manager.
func (c *Client) onTimeout(id tsm.InvokeID) {
	ch, ok := c.waiters.LoadAndDelete(id)
	if !ok {
		return
	}
	c.metrics.TimeoutCount.Add(1)
	c.logger.Debug("request timed out", "invokeID", id)

	ch <- result{err: ErrReplyTimeout}
}

func (c *Client) dropReply(reason string, keysAndValues ...any) {
	c.metrics.DroppedReplyCount.Add(1)
	c.logger.Debug("reply dropped: "+reason, keysAndValues...)
}

// requestService returns the service choice of an encoded confirmed request.
func requestService(apdu []byte) bacnet.ConfirmedService {
	hdr, _, err := bacnet.DecodeConfirmedRequest(apdu)
	if err != nil {
		return 0
	}

	return hdr.Service
}
