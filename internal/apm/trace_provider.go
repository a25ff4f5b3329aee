// Package apm configures OpenTelemetry tracing.
package apm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/chswap-kiosk/internal/logger"
)

type Provider string

const (
	ZipkinProvider   Provider = "zipkin"
	OTLPGRPCProvider Provider = "otlp-grpc"
	OTLPHTTPProvider Provider = "otlp-http"
	ConsoleProvider  Provider = "console"
	EmptyProvider    Provider = "none"
)

type TraceProvider interface {
	Stop() error
}

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

// Exporter holds collector connection settings.
type Exporter struct {
	Endpoint string
	// Headers in "k1=v1,k2=v2" form.
	Headers string
}

type TracerOptions struct {
	exporter     sdktrace.SpanExporter
	providerName string
	serviceName  string
	useEmpty     bool
	err          error
}

type TracerOption func(*TracerOptions)

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) TracerOption {
	return func(o *TracerOptions) {
		o.serviceName = name
	}
}

// WithProvider selects the span exporter.
func WithProvider(provider Provider, exp Exporter, log logger.LoggerInterface) TracerOption {
	switch provider {
	case ZipkinProvider:
		return useZipkin(exp)
	case OTLPGRPCProvider:
		return useOTLPGRPC(exp)
	case OTLPHTTPProvider:
		return useOTLPHTTP(exp)
	case ConsoleProvider:
		return useConsole()
	case EmptyProvider:
		return useEmpty()
	}

	log.Warn(context.Background(), "unknown trace provider, tracing disabled", "provider", provider)
	return useEmpty()
}

func useEmpty() TracerOption {
	return func(o *TracerOptions) {
		o.useEmpty = true
		o.providerName = string(EmptyProvider)
	}
}

func useConsole() TracerOption {
	return func(o *TracerOptions) {
		o.exporter, o.err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		o.providerName = string(ConsoleProvider)
	}
}

func useZipkin(exp Exporter) TracerOption {
	return func(o *TracerOptions) {
		o.exporter, o.err = zipkin.New(exp.Endpoint)
		o.providerName = string(ZipkinProvider)
	}
}

func useOTLPGRPC(exp Exporter) TracerOption {
	return func(o *TracerOptions) {
		o.exporter, o.err = otlptracegrpc.New(
			context.Background(),
			otlptracegrpc.WithEndpointURL(exp.Endpoint),
			otlptracegrpc.WithHeaders(ParseHeaders(exp.Headers)),
		)
		o.providerName = string(OTLPGRPCProvider)
	}
}

func useOTLPHTTP(exp Exporter) TracerOption {
	return func(o *TracerOptions) {
		o.exporter, o.err = otlptracehttp.New(
			context.Background(),
			otlptracehttp.WithEndpointURL(exp.Endpoint),
			otlptracehttp.WithHeaders(ParseHeaders(exp.Headers)),
		)
		o.providerName = string(OTLPHTTPProvider)
	}
}

// ParseHeaders splits "k1=v1,k2=v2" into a map, skipping malformed pairs.
func ParseHeaders(s string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" {
			continue
		}
		headers[k] = v
	}
	return headers
}

// NewTraceProvider installs a global tracer provider and propagator.
func NewTraceProvider(options ...TracerOption) (TraceProvider, error) {
	opts := &TracerOptions{}
	for _, opt := range options {
		opt(opts)
	}

	if opts.err != nil {
		return nil, fmt.Errorf("apm: create %s exporter: %w", opts.providerName, opts.err)
	}
	if opts.useEmpty || opts.exporter == nil {
		return emptyTraceProvider{}, nil
	}

	rsrc, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.serviceName),
			attribute.String("otel.provider", opts.providerName),
		))
	if err != nil {
		rsrc = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(opts.exporter),
		sdktrace.WithResource(rsrc),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	return &traceProvider{tp}, nil
}

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
	defer cancel()

	return o.tp.Shutdown(ctx)
}

type emptyTraceProvider struct{}

func (emptyTraceProvider) Stop() error {
	return nil
}
