package apm_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fd1az/chswap-kiosk/internal/apm"
)

func TestTracer_RecordsErrorStatus(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tracer := apm.NewTracer("test")

	_, span := tracer.StartSpanFromContext(context.Background(), "swap.trigger")
	span.NoticeError(errors.New("rejected"))
	span.End()

	_, ok := tracer.StartSpanFromContext(context.Background(), "swap.refresh")
	ok.Ok()
	ok.End()

	ended := rec.Ended()
	if len(ended) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(ended))
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", ended[0].Status().Code)
	}
	if len(ended[0].Events()) != 1 {
		t.Errorf("expected recorded error event, got %d events", len(ended[0].Events()))
	}
	if ended[1].Status().Code != codes.Ok {
		t.Errorf("expected ok status, got %v", ended[1].Status().Code)
	}
}

func TestParseHeaders(t *testing.T) {
	got := apm.ParseHeaders("x-team=abc, api-key=k=v ,broken,=empty")

	if got["x-team"] != "abc" {
		t.Errorf("expected abc, got %q", got["x-team"])
	}
	if got["api-key"] != "k=v" {
		t.Errorf("expected k=v, got %q", got["api-key"])
	}
	if len(got) != 2 {
		t.Errorf("expected 2 headers, got %v", got)
	}
}

func TestNewTraceProvider_Empty(t *testing.T) {
	tp, err := apm.NewTraceProvider(apm.WithServiceName("kiosk"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tp.Stop(); err != nil {
		t.Errorf("unexpected stop error: %v", err)
	}
}
