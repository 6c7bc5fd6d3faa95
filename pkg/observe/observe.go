// Package observe wires OpenTelemetry metrics for the API and exposes them
// to Prometheus or stdout.
package observe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config configures the metrics provider.
type Config struct {
	ServiceName string
	Version     string

	// Exporter is one of prometheus, stdout or none.
	Exporter string
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return errors.New("observe: service name is required")
	}
	switch c.Exporter {
	case "prometheus", "stdout", "none", "":
		return nil
	default:
		return fmt.Errorf("observe: unknown metrics exporter %q", c.Exporter)
	}
}

// Provider owns the meter provider and the instruments built on it.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	handler       http.Handler
	metrics       *Metrics
}

// New builds a Provider. With the none exporter every instrument is a no-op
// and Handler returns nil.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{}

	if cfg.Exporter == "none" || cfg.Exporter == "" {
		p.meter = noop.NewMeterProvider().Meter(cfg.ServiceName)
	} else {
		reader, handler, err := NewMetricsReader(cfg.Exporter)
		if err != nil {
			return nil, err
		}

		res, err := resource.New(ctx,
			resource.WithAttributes(
				semconv.ServiceName(cfg.ServiceName),
				semconv.ServiceVersion(cfg.Version),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("observe: create resource: %w", err)
		}

		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		)
		p.meter = p.meterProvider.Meter(cfg.ServiceName)
		p.handler = handler
	}

	m, err := newMetrics(p.meter)
	if err != nil {
		return nil, fmt.Errorf("observe: create instruments: %w", err)
	}
	p.metrics = m
	return p, nil
}

// Metrics returns the API instruments.
func (p *Provider) Metrics() *Metrics { return p.metrics }

// Meter returns the underlying meter.
func (p *Provider) Meter() metric.Meter { return p.meter }

// Handler serves the Prometheus scrape endpoint, or is nil when the
// exporter is not prometheus.
func (p *Provider) Handler() http.Handler { return p.handler }

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
