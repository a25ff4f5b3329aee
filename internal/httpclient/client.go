// Package httpclient builds instrumented *http.Client values for node RPC
// transports.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// Default connection pool settings
	defaultDialKeepAlive         = 10 * time.Second
	defaultRequestTimeout        = 10 * time.Second
	defaultMaxIdleConns          = 0
	defaultMaxConnsPerHost       = 5
	defaultIdleConnTimeout       = 2 * time.Minute
	defaultExpectContinueTimeout = 100 * time.Millisecond

	// Metric names
	metricRequestCounter = "http_client_requests_total"
	metricErrorCounter   = "http_client_errors_total"
)

// New creates an *http.Client whose transport is traced with otelhttp and
// counts requests per provider.
func New(opts ...ClientOption) (*http.Client, error) {
	options := NewClientOptions(opts...)

	transport := options.roundTripper
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				KeepAlive: defaultDialKeepAlive,
			}).DialContext,
			MaxIdleConns:          defaultMaxIdleConns,
			MaxConnsPerHost:       defaultMaxConnsPerHost,
			IdleConnTimeout:       defaultIdleConnTimeout,
			ExpectContinueTimeout: defaultExpectContinueTimeout,
		}
	}

	providerName := options.providerName
	if providerName == "" {
		providerName = "default"
	}

	meterProvider := options.meterProvider
	if meterProvider == nil {
		meterProvider = otel.GetMeterProvider()
	}

	meter := meterProvider.Meter(
		"instrumented_http_client",
		metric.WithInstrumentationAttributes(attribute.String("provider", providerName)),
	)

	requests, err := meter.Int64Counter(
		metricRequestCounter,
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter(
		metricErrorCounter,
		metric.WithDescription("HTTP requests that failed or returned a 5xx status"),
	)
	if err != nil {
		return nil, err
	}

	timeout := defaultRequestTimeout
	if options.requestTimeout != nil {
		timeout = *options.requestTimeout
	}

	counted := &countingTransport{
		next:     transport,
		provider: providerName,
		headers:  options.headers,
		requests: requests,
		errors:   errs,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(
			counted,
			otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
				return otelhttptrace.NewClientTrace(ctx)
			}),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return providerName + " " + r.Method
			}),
		),
	}, nil
}

// countingTransport records one request per round trip and sets default headers.
type countingTransport struct {
	next     http.RoundTripper
	provider string
	headers  map[string]string
	requests metric.Int64Counter
	errors   metric.Int64Counter
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range t.headers {
			if req.Header.Get(k) == "" {
				req.Header.Set(k, v)
			}
		}
	}

	resp, err := t.next.RoundTrip(req)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", t.provider),
		attribute.String("method", req.Method),
		attribute.Int("status", status),
	)
	t.requests.Add(req.Context(), 1, attrs)
	if err != nil || status >= http.StatusInternalServerError {
		t.errors.Add(req.Context(), 1, attrs)
	}
	return resp, err
}
