// Package metrics exports the atomic counters of the transaction manager,
// client and datalink as Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/arloliu/go-bacnet/bip"
	"github.com/arloliu/go-bacnet/client"
	"github.com/arloliu/go-bacnet/logger"
	"github.com/arloliu/go-bacnet/tsm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func counter(namespace, subsystem, name, help string, v *atomic.Uint64) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(v.Load()) })
}

func gauge(namespace, subsystem, name, help string, fn func() float64) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}

func register(reg prometheus.Registerer, collectors ...prometheus.Collector) error {
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("metrics: register: %w", err)
		}
	}

	return nil
}

// RegisterTSM registers the metrics of a transaction manager under namespace_tsm.
func RegisterTSM(reg prometheus.Registerer, namespace string, m *tsm.Manager) error {
	mt := m.Metrics()
	const sub = "tsm"

	return register(reg,
		counter(namespace, sub, "invoke_ids_allocated_total", "Invoke IDs handed out.", &mt.AllocCount),
		counter(namespace, sub, "invoke_id_exhausted_total", "Allocations refused because every slot was in use.", &mt.AllocFailCount),
		counter(namespace, sub, "requests_registered_total", "Requests registered for retransmission.", &mt.RegisterCount),
		counter(namespace, sub, "retransmissions_total", "Retransmissions attempted.", &mt.RetransmitCount),
		counter(namespace, sub, "retransmission_errors_total", "Retransmissions rejected by the transport.", &mt.RetransmitErrCount),
		counter(namespace, sub, "timeouts_total", "Transactions that exhausted their retries.", &mt.TimeoutCount),
		counter(namespace, sub, "releases_total", "Transactions released.", &mt.ReleaseCount),
		gauge(namespace, sub, "awaiting_confirmation", "Transactions awaiting confirmation.",
			func() float64 { return float64(mt.InFlightCount.Load()) }),
		gauge(namespace, sub, "failed_pending_release", "Failed transactions not yet released.",
			func() float64 { return float64(mt.FailedCount.Load()) }),
		gauge(namespace, sub, "slots_in_use", "Transaction slots in use.",
			func() float64 { return float64(m.InFlight()) }),
		gauge(namespace, sub, "slots_capacity", "Transaction slots available in total.",
			func() float64 { return float64(m.Capacity()) }),
	)
}

// RegisterClient registers the metrics of a client under namespace_client.
func RegisterClient(reg prometheus.Registerer, namespace string, c *client.Client) error {
	mt := c.Metrics()
	const sub = "client"

	return register(reg,
		counter(namespace, sub, "requests_total", "Confirmed requests sent.", &mt.RequestCount),
		counter(namespace, sub, "no_invoke_id_total", "Requests refused for lack of an invoke ID.", &mt.NoInvokeIDCount),
		counter(namespace, sub, "replies_total", "Replies delivered to a request.", &mt.ReplyCount),
		counter(namespace, sub, "negative_replies_total", "Error, Reject and Abort replies delivered.", &mt.NegativeReplyCount),
		counter(namespace, sub, "timeouts_total", "Requests that received no reply.", &mt.TimeoutCount),
		counter(namespace, sub, "canceled_total", "Requests abandoned by their context.", &mt.CanceledCount),
		counter(namespace, sub, "dropped_replies_total", "Replies matching no pending request.", &mt.DroppedReplyCount),
		gauge(namespace, sub, "pending_requests", "Requests waiting for a reply.",
			func() float64 { return float64(mt.PendingCount.Load()) }),
	)
}

// RegisterDatalink registers the metrics of a BACnet/IP datalink under namespace_bip.
func RegisterDatalink(reg prometheus.Registerer, namespace string, d *bip.Datalink) error {
	mt := d.Metrics()
	const sub = "bip"

	return register(reg,
		counter(namespace, sub, "tx_frames_total", "Frames sent.", &mt.TxFrameCount),
		counter(namespace, sub, "tx_bytes_total", "Bytes sent.", &mt.TxByteCount),
		counter(namespace, sub, "tx_errors_total", "Frames that could not be sent.", &mt.TxErrCount),
		counter(namespace, sub, "rx_frames_total", "Frames received.", &mt.RxFrameCount),
		counter(namespace, sub, "rx_bytes_total", "Bytes received.", &mt.RxByteCount),
		counter(namespace, sub, "rx_dropped_total", "Received frames not delivered.", &mt.RxDropCount),
	)
}

// Server serves /metrics over HTTP.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Serve starts serving the metrics gathered by g on addr.
func Serve(addr string, g prometheus.Gatherer, l logger.Logger) (*Server, error) {
	if l == nil {
		l = logger.GetLogger()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	s := &Server{srv: &http.Server{Handler: mux}, ln: ln} //nolint:gosec // scrape endpoint

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Warn("metrics: serve failed", "error", err)
		}
	}()
	l.Info("metrics: serving", "listen", ln.Addr().String())

	return s, nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
