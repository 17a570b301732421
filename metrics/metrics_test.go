package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/metrics"
	prom "github.com/prometheus/client_golang/prometheus"
)

var testCounter = prom.NewCounter(prom.CounterOpts{
	Name: "metrics_test_counter_total",
	Help: "Counter used by the metrics server test",
})

func init() {
	prom.MustRegister(testCounter)
}

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestMetricsServer(t *testing.T) {
	testCounter.Inc()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewMetricsServer(0, metrics.NewRegistry())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(listener)
	}()
	defer func() {
		require.NoError(t, server.Stop(context.Background()))
		require.NoError(t, <-done)
	}()

	base := "http://" + listener.Addr().String()

	status, body := get(t, base+"/health")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "OK", body)

	status, body = get(t, base+"/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "metrics_test_counter_total 1")
}
