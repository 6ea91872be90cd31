package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lanscope"

// Metrics exposes application metrics that are safe to scrape via Prometheus.
// Every method is a no-op on a nil receiver.
type Metrics struct {
	registry             *prometheus.Registry
	httpRequests         *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	discoveryRunsTotal   *prometheus.CounterVec
	discoveryRunDuration prometheus.Histogram
	driverRecords        *prometheus.CounterVec
	driverErrors         *prometheus.CounterVec
	inventoryDevices     *prometheus.GaugeVec
}

// New creates a fresh registry with HTTP, discovery and inventory metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	discoveryRunsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discovery_runs_total",
		Help:      "Discovery passes by outcome",
	}, []string{"outcome"})

	discoveryRunDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "discovery_run_duration_seconds",
		Help:      "Duration of discovery passes from priming to enrichment",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	driverRecords := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "driver_records_total",
		Help:      "Partial records produced per driver",
	}, []string{"driver"})

	driverErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "driver_errors_total",
		Help:      "Driver invocations that contributed nothing because of an error",
	}, []string{"driver"})

	inventoryDevices := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "inventory_devices",
		Help:      "Devices in the inventory cache by status",
	}, []string{"status"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		discoveryRunsTotal,
		discoveryRunDuration,
		driverRecords,
		driverErrors,
		inventoryDevices,
	)

	return &Metrics{
		registry:             registry,
		httpRequests:         httpRequests,
		httpRequestDuration:  httpRequestDuration,
		discoveryRunsTotal:   discoveryRunsTotal,
		discoveryRunDuration: discoveryRunDuration,
		driverRecords:        driverRecords,
		driverErrors:         driverErrors,
		inventoryDevices:     inventoryDevices,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveDiscoveryRun counts one pass and its duration. outcome is
// "succeeded" or "failed".
func (m *Metrics) ObserveDiscoveryRun(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.discoveryRunsTotal.WithLabelValues(outcome).Inc()
	m.discoveryRunDuration.Observe(duration.Seconds())
}

func (m *Metrics) AddDriverRecords(driver string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.driverRecords.WithLabelValues(driver).Add(float64(n))
}

func (m *Metrics) IncDriverError(driver string) {
	if m == nil {
		return
	}
	m.driverErrors.WithLabelValues(driver).Inc()
}

// SetInventory replaces the per-status device gauges.
func (m *Metrics) SetInventory(byStatus map[string]int) {
	if m == nil {
		return
	}
	m.inventoryDevices.Reset()
	for status, n := range byStatus {
		m.inventoryDevices.WithLabelValues(status).Set(float64(n))
	}
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
