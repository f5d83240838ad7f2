package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/arloliu/go-bacnet/bacnet"
	"github.com/arloliu/go-bacnet/client"
	"github.com/arloliu/go-bacnet/logger"
	"github.com/arloliu/go-bacnet/tsm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var silentTransport = tsm.TransportFunc(func(_ *bacnet.Address, _ *bacnet.NPDUData, apdu []byte) (int, error) {
	return len(apdu), nil
})

func discardLogger() logger.Logger {
	return logger.NewSlogWriter(io.Discard, logger.InfoLevel, false)
}

func TestRegisterTSM(t *testing.T) {
	cfg, err := tsm.NewManagerConfig(tsm.WithCapacity(4), tsm.WithMaxRetries(0), tsm.WithLogger(discardLogger()))
	require.NoError(t, err)
	m, err := tsm.NewManager(silentTransport, cfg)
	require.NoError(t, err)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, RegisterTSM(reg, "bacnet", m))

	dest, err := bacnet.NewLocalAddress([]byte{10, 0, 0, 1, 0xBA, 0xC0})
	require.NoError(t, err)
	id, ok := m.NextFreeInvokeID()
	require.True(t, ok)
	require.NoError(t, m.RegisterUnsegmented(id, &dest, nil, []byte{0x00, 0x05, 0x01, 0x0C}))
	_, _ = m.NextFreeInvokeID()
	m.Tick(time.Hour)

	expected := `
# HELP bacnet_tsm_invoke_ids_allocated_total Invoke IDs handed out.
# TYPE bacnet_tsm_invoke_ids_allocated_total counter
bacnet_tsm_invoke_ids_allocated_total 2
# HELP bacnet_tsm_timeouts_total Transactions that exhausted their retries.
# TYPE bacnet_tsm_timeouts_total counter
bacnet_tsm_timeouts_total 1
# HELP bacnet_tsm_failed_pending_release Failed transactions not yet released.
# TYPE bacnet_tsm_failed_pending_release gauge
bacnet_tsm_failed_pending_release 1
# HELP bacnet_tsm_slots_in_use Transaction slots in use.
# TYPE bacnet_tsm_slots_in_use gauge
bacnet_tsm_slots_in_use 2
# HELP bacnet_tsm_slots_capacity Transaction slots available in total.
# TYPE bacnet_tsm_slots_capacity gauge
bacnet_tsm_slots_capacity 4
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"bacnet_tsm_invoke_ids_allocated_total",
		"bacnet_tsm_timeouts_total",
		"bacnet_tsm_failed_pending_release",
		"bacnet_tsm_slots_in_use",
		"bacnet_tsm_slots_capacity",
	))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 11, count)

	// registering twice collides
	require.Error(t, RegisterTSM(reg, "bacnet", m))
}

func TestRegisterClient(t *testing.T) {
	cfg, err := client.NewConfig(client.WithLogger(discardLogger()), client.WithCapacity(1), client.WithRequestTimeout(time.Minute))
	require.NoError(t, err)
	c, err := client.New(context.Background(), silentTransport, cfg)
	require.NoError(t, err)
	defer c.Close()

	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterClient(reg, "bacnet", c))
	require.NoError(t, RegisterTSM(reg, "bacnet", c.TSM()))

	dest, err := bacnet.NewLocalAddress([]byte{10, 0, 0, 1, 0xBA, 0xC0})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Request(ctx, &dest, nil, bacnet.ServiceReadProperty, []byte{0x0C})
	}()
	require.Eventually(t, func() bool { return c.Metrics().PendingCount.Load() == 1 }, time.Second, time.Millisecond)

	_, err = c.Request(context.Background(), &dest, nil, bacnet.ServiceReadProperty, []byte{0x0C})
	require.ErrorIs(t, err, client.ErrNoInvokeID)

	cancel()
	<-done

	expected := `
# HELP bacnet_client_requests_total Confirmed requests sent.
# TYPE bacnet_client_requests_total counter
bacnet_client_requests_total 1
# HELP bacnet_client_no_invoke_id_total Requests refused for lack of an invoke ID.
# TYPE bacnet_client_no_invoke_id_total counter
bacnet_client_no_invoke_id_total 1
# HELP bacnet_client_canceled_total Requests abandoned by their context.
# TYPE bacnet_client_canceled_total counter
bacnet_client_canceled_total 1
# HELP bacnet_client_pending_requests Requests waiting for a reply.
# TYPE bacnet_client_pending_requests gauge
bacnet_client_pending_requests 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"bacnet_client_requests_total",
		"bacnet_client_no_invoke_id_total",
		"bacnet_client_canceled_total",
		"bacnet_client_pending_requests",
	))
}

func TestServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "probe_total", Help: "Probe."})
	reg.MustRegister(c)
	c.Add(3)

	s, err := Serve("127.0.0.1:0", reg, discardLogger())
	require.NoError(t, err)
	defer func() { _ = s.Shutdown(context.Background()) }()

	resp, err := http.Get("http://" + s.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "probe_total 3")
}
