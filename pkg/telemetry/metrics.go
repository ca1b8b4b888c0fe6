package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/upul/ml-dev-assignment/pkg/counter"
)

const metricsNamespace = "sentiment"

// seriesCollector reports the live window count of every known series at
// scrape time.
type seriesCollector struct {
	registry *counter.Registry
	calls    *prometheus.Desc
	window   *prometheus.Desc
}

func NewSeriesCollector(registry *counter.Registry) prometheus.Collector {
	return &seriesCollector{
		registry: registry,
		calls: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "api", "calls_in_window"),
			"Number of calls to the API within the trailing statistics window.",
			[]string{"api"}, nil,
		),
		window: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "statistics", "window_seconds"),
			"Length of the trailing statistics window.",
			nil, nil,
		),
	}
}

func (c *seriesCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.calls
	ch <- c.window
}

func (c *seriesCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.window, prometheus.GaugeValue, c.registry.Window().Seconds())
	for api, count := range c.registry.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.calls, prometheus.GaugeValue, float64(count), api)
	}
}

// NewMetricsRegistry returns a Prometheus registry carrying the series
// collector and the Go runtime collectors.
func NewMetricsRegistry(registry *counter.Registry) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewSeriesCollector(registry),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
