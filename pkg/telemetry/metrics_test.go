package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/upul/ml-dev-assignment/pkg/counter"
)

func TestSeriesCollectorReportsWindowCounts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg, err := counter.NewRegistry(time.Minute, counter.WithClock(clock))
	require.NoError(t, err)
	reg.Record("health")
	reg.Record("health")
	reg.Record("predict")

	expected := `
# HELP sentiment_api_calls_in_window Number of calls to the API within the trailing statistics window.
# TYPE sentiment_api_calls_in_window gauge
sentiment_api_calls_in_window{api="health"} 2
sentiment_api_calls_in_window{api="predict"} 1
`
	collector := NewSeriesCollector(reg)
	require.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected), "sentiment_api_calls_in_window"))

	clock.Advance(2 * time.Minute)
	expired := `
# HELP sentiment_api_calls_in_window Number of calls to the API within the trailing statistics window.
# TYPE sentiment_api_calls_in_window gauge
sentiment_api_calls_in_window{api="health"} 0
sentiment_api_calls_in_window{api="predict"} 0
`
	require.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expired), "sentiment_api_calls_in_window"))
}

func TestMetricsHandlerServesExposition(t *testing.T) {
	reg, err := counter.NewRegistry(time.Minute)
	require.NoError(t, err)
	reg.Record("health")

	resp := httptest.NewRecorder()
	MetricsHandler(NewMetricsRegistry(reg)).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `sentiment_api_calls_in_window{api="health"} 1`)
	require.Contains(t, resp.Body.String(), "sentiment_statistics_window_seconds 60")
}
