// Package tracing sets up the OpenTelemetry tracer provider. Commands
// are traced from dispatch to the end of their session.
package tracing

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/moolen/gameterm/internal/config"
	"github.com/moolen/gameterm/internal/logging"
)

// ServiceName identifies the client in exported spans.
const ServiceName = "gameterm"

// Provider owns the tracer provider and implements lifecycle.Component.
// A disabled Provider hands out no-op tracers.
type Provider struct {
	tp     *sdktrace.TracerProvider
	logger *logging.Logger
}

// New creates the provider. When tracing is enabled it becomes the
// global tracer provider.
func New(cfg config.TracingConfig, version string) (*Provider, error) {
	logger := logging.GetLogger("tracing")
	if !cfg.Enabled {
		logger.Debug("tracing disabled")
		return &Provider{logger: logger}, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("tracing enabled but endpoint not configured")
	}

	transportOpts, err := transportOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx, append(transportOpts, otlptracegrpc.WithEndpoint(cfg.Endpoint))...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	logger.Info("Tracing initialized with endpoint: %s", cfg.Endpoint)
	return &Provider{tp: tp, logger: logger}, nil
}

// transportOptions picks the exporter's credentials: a custom CA, TLS
// without verification, or plaintext.
func transportOptions(cfg config.TracingConfig, logger *logging.Logger) ([]otlptracegrpc.Option, error) {
	switch {
	case cfg.TLSInsecure:
		logger.Warn("Tracing TLS certificate verification disabled")
		creds := credentials.NewTLS(&tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS12,
		})
		return []otlptracegrpc.Option{otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(creds))}, nil

	case cfg.TLSCAPath != "":
		caCert, err := os.ReadFile(cfg.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.TLSCAPath)
		}
		creds := credentials.NewTLS(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12})
		logger.Debug("tracing TLS CA loaded from %s", cfg.TLSCAPath)
		return []otlptracegrpc.Option{otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(creds))}, nil

	default:
		return []otlptracegrpc.Option{
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}, nil
	}
}

// Tracer returns a tracer for instrumenting code.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p.tp == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return p.tp.Tracer(name)
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.tp != nil
}

// Start implements lifecycle.Component.
func (p *Provider) Start(context.Context) error {
	return nil
}

// Stop flushes buffered spans.
func (p *Provider) Stop(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}
	p.logger.Debug("tracer provider stopped")
	return nil
}

// Name implements lifecycle.Component.
func (p *Provider) Name() string {
	return "Tracing Provider"
}
