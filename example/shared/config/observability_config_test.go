package config_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolsvik/glazedlists/eventlist"
	"github.com/stolsvik/glazedlists/eventlist/oteladapters"
	"github.com/stolsvik/glazedlists/example/shared/config"
)

func Test_PrometheusObservabilityConfig_ServesListMetrics(t *testing.T) {
	ctx := context.Background()
	providers, err := config.NewPrometheusObservabilityConfig(ctx, "eventlist-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.Shutdown() })

	collector := oteladapters.NewMetricsCollector(providers.MeterProvider.Meter("eventlist-test"))
	list, err := eventlist.New[int](eventlist.WithName("scores"), eventlist.WithMetrics(collector))
	require.NoError(t, err)
	require.NoError(t, list.Append(ctx, 1, 2, 3))

	recorder := httptest.NewRecorder()
	providers.MetricsHandler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, "eventlist_write_duration_seconds")
	assert.Contains(t, body, `list="scores"`)
}
