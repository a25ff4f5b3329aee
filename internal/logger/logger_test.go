package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fd1az/chswap-kiosk/internal/logger"
)

func TestLogger_WritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "chswap-kiosk", func(context.Context) string { return "abc123" })

	log.Info(context.Background(), "rates refreshed", "block", 42)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}

	checks := map[string]any{
		"msg":      "rates refreshed",
		"service":  "chswap-kiosk",
		"trace_id": "abc123",
		"block":    float64(42),
		"level":    "INFO",
	}
	for k, want := range checks {
		if rec[k] != want {
			t.Errorf("%s: expected %v, got %v", k, want, rec[k])
		}
	}

	src, _ := rec["source"].(string)
	if !strings.HasPrefix(src, "logger_test.go:") {
		t.Errorf("expected source in logger_test.go, got %q", src)
	}
}

func TestLogger_FiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelWarn, "svc", nil)

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}

	log.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("expected warn record, got %q", buf.String())
	}
}

func TestLogger_NoTraceIDWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "svc", nil)

	log.Info(context.Background(), "plain")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("unexpected trace_id in %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logger.Level
	}{
		{"debug", logger.LevelDebug},
		{"info", logger.LevelInfo},
		{"warn", logger.LevelWarn},
		{"error", logger.LevelError},
		{"", logger.LevelInfo},
		{"verbose", logger.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := logger.ParseLevel(tt.in); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
