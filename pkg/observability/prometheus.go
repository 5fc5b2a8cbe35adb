package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusProvider is a MeterProvider whose instruments are served in the
// Prometheus exposition format by Handler.
type PrometheusProvider struct {
	*sdkmetric.MeterProvider

	// Handler serves the /metrics scrape endpoint.
	Handler http.Handler
}

// NewPrometheusProvider creates a MeterProvider backed by an OTel Prometheus
// exporter. Each call creates an independent Prometheus registry to avoid
// collector conflicts when called multiple times.
func NewPrometheusProvider() (*PrometheusProvider, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &PrometheusProvider{
		MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
		Handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}
