// Package telemetry wires OpenTelemetry metrics to a Prometheus scrape endpoint
// and exposes the pipeline's instruments.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/book-expert/logger"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

// MeterName scopes every instrument this service registers.
const MeterName = "github.com/book-expert/podcast-service"

// Provider owns the meter provider and its scrape handler.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	handler       http.Handler
	metrics       *Metrics
}

// Setup installs a global meter provider backed by a Prometheus exporter with
// its own registry. When the exporter cannot be created the provider still
// records metrics but Handler returns nil.
func Setup(serviceName, environment string, log *logger.Logger) (*Provider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			attribute.String("deployment.environment", environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	registry := promclient.NewRegistry()
	options := []sdkmetric.Option{sdkmetric.WithResource(res)}

	var handler http.Handler

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		log.Warn("Failed to initialize prometheus exporter: %v", err)
	} else {
		options = append(options, sdkmetric.WithReader(exporter))
		handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	meterProvider := sdkmetric.NewMeterProvider(options...)
	otel.SetMeterProvider(meterProvider)

	metrics, err := NewMetrics(meterProvider.Meter(MeterName))
	if err != nil {
		return nil, errors.Join(err, meterProvider.Shutdown(context.Background()))
	}

	log.Info("Telemetry initialized for %s (%s)", serviceName, environment)

	return &Provider{meterProvider: meterProvider, handler: handler, metrics: metrics}, nil
}

// Handler serves the Prometheus exposition format, or nil.
func (p *Provider) Handler() http.Handler {
	return p.handler
}

// Metrics returns the pipeline instruments.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	err := p.meterProvider.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("failed to shut down meter provider: %w", err)
	}

	return nil
}
