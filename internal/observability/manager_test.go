package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/config"
)

func TestPrometheusMetrics(t *testing.T) {
	cfg := config.Config{Observability: config.Observability{
		ServiceName:     "stream",
		EnableMetrics:   true,
		MetricsExporter: "prometheus",
		PrometheusPath:  "/metrics",
	}}
	mgr, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })

	assert.True(t, mgr.MetricsEnabled())
	assert.False(t, mgr.TracingEnabled())
	require.NotNil(t, mgr.MetricsHandler())

	counter, err := mgr.MeterProvider().Meter("test").Int64Counter("stream_test_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	srv := httptest.NewServer(mgr.MetricsHandler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "stream_test_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetricsDisabled(t *testing.T) {
	mgr, err := Build(context.Background(), config.Config{}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, mgr.MetricsEnabled())
	assert.Nil(t, mgr.MetricsHandler())
	assert.NotNil(t, mgr.MeterProvider())
	assert.NoError(t, mgr.Shutdown(context.Background()))
}

func TestUnknownExporterDisablesMetrics(t *testing.T) {
	cfg := config.Config{Observability: config.Observability{EnableMetrics: true, MetricsExporter: "statsd"}}
	mgr, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mgr.MetricsEnabled())
}
