package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestNew_CountsRequestsAndSetsHeaders(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	client, err := New(
		WithMeterProvider(mp),
		WithProviderName("celo-rpc"),
		WithHeaders(map[string]string{"User-Agent": "chswap-kiosk"}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if client.Timeout != defaultRequestTimeout {
		t.Errorf("expected default timeout, got %s", client.Timeout)
	}

	for _, path := range []string{"/", "/fail"} {
		resp, err := client.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	if gotAgent != "chswap-kiosk" {
		t.Errorf("expected default header, got %q", gotAgent)
	}
	if n := counterTotal(t, reader, metricRequestCounter); n != 2 {
		t.Errorf("expected 2 requests, got %d", n)
	}
	if n := counterTotal(t, reader, metricErrorCounter); n != 1 {
		t.Errorf("expected 1 error, got %d", n)
	}
}

func TestNew_RequestTimeout(t *testing.T) {
	client, err := New(WithRequestTimeout(3 * time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if client.Timeout != 3*time.Second {
		t.Errorf("expected 3s, got %s", client.Timeout)
	}
}
