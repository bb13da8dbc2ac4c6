package observability

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.ObserveTick("a", 0.01)
	m.ObserveTick("a", 0.02)
	m.IncCollectionFailure("a", "host")
	m.IncAlert("a", "reactive")
	m.IncAlert("a", "predictive")
	m.IncAlert("a", "reactive")
	m.IncSinkFailure("a", "grpc")
	m.IncPredictorFailure("a")
	m.SetHealth("a", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ticks.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.collectionFailures.WithLabelValues("a", "host")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.alerts.WithLabelValues("a", "reactive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alerts.WithLabelValues("a", "predictive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sinkFailures.WithLabelValues("a", "grpc")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictorFailures.WithLabelValues("a")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.health.WithLabelValues("a")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.tickDuration))
}

func TestNewMetrics_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMetrics(reg)
	require.NoError(t, err)
	second, err := NewMetrics(reg)
	require.NoError(t, err)

	first.IncAlert("a", "reactive")
	second.IncAlert("b", "reactive")

	assert.Equal(t, 1.0, testutil.ToFloat64(first.alerts.WithLabelValues("b", "reactive")))
	assert.Equal(t, 2, testutil.CollectAndCount(first.alerts))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTick("a", 1)
		m.IncCollectionFailure("a", "host")
		m.IncAlert("a", "reactive")
		m.IncSinkFailure("a", "log")
		m.IncPredictorFailure("a")
		m.SetHealth("a", 1)
	})
}

func TestServeListener(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	m.IncAlert("node-1", "reactive")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeListener(ctx, ln, reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `healthmon_alerts_total{instance="node-1",kind="reactive"} 1`))

	resp, err = http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

func TestServe_EmptyAddrDisabled(t *testing.T) {
	err := Serve(context.Background(), "", nil, slog.Default())
	assert.NoError(t, err)
}
