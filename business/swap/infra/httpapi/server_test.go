package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/fd1az/chswap-kiosk/business/swap/app"
	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/apperror"
	"github.com/fd1az/chswap-kiosk/internal/config"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

type fakeControls struct {
	mu         sync.Mutex
	direction  domain.Direction
	input      string
	triggers   int
	dirErr     error
	triggerErr error
	cleared    bool
}

func (c *fakeControls) SetDirection(_ context.Context, d domain.Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dirErr != nil {
		return c.dirErr
	}
	c.direction = d
	c.input = ""
	return nil
}

func (c *fakeControls) SetInput(_ context.Context, s string) {
	c.mu.Lock()
	c.input = s
	c.mu.Unlock()
}

func (c *fakeControls) Trigger(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggers++
	return c.triggerErr
}

func (c *fakeControls) View() app.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.direction
	if d == "" {
		d = domain.DirectionBuy
	}
	return app.View{
		Direction:     d,
		Input:         c.input,
		ActionLabel:   "Enter Amount",
		PendingStatus: domain.StatusIdle,
	}
}

func (c *fakeControls) ClearError() {
	c.mu.Lock()
	c.cleared = true
	c.mu.Unlock()
}

func newTestServer(t *testing.T, c *fakeControls, cfg config.APIConfig) http.Handler {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	return NewServer(cfg, c, &mockLogger{}).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) app.View {
	t.Helper()
	var v app.View
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperror.ResponseError {
	t.Helper()
	var resp apperror.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return resp.Error
}

func TestServer_GetView(t *testing.T) {
	h := newTestServer(t, &fakeControls{}, config.APIConfig{})

	rec := do(t, h, http.MethodGet, "/api/v1/view", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	if v := decodeView(t, rec); v.Direction != domain.DirectionBuy || v.ActionLabel != "Enter Amount" {
		t.Errorf("unexpected view %+v", v)
	}
}

func TestServer_PostDirection(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		dirErr     error
		wantStatus int
		wantCode   apperror.Code
		wantDir    domain.Direction
	}{
		{"sell", `{"direction":"sell"}`, nil, http.StatusOK, "", domain.DirectionSell},
		{"case insensitive", `{"direction":"BUY"}`, nil, http.StatusOK, "", domain.DirectionBuy},
		{"unknown direction", `{"direction":"hold"}`, nil, http.StatusBadRequest, apperror.CodeInvalidDirection, ""},
		{"malformed body", `{"direction":`, nil, http.StatusBadRequest, apperror.CodeInvalidInput, ""},
		{"unknown field", `{"side":"sell"}`, nil, http.StatusBadRequest, apperror.CodeInvalidInput, ""},
		{"busy", `{"direction":"sell"}`, apperror.New(apperror.CodeOperationInFlight), http.StatusConflict, apperror.CodeOperationInFlight, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeControls{dirErr: tt.dirErr}
			h := newTestServer(t, c, config.APIConfig{})

			rec := do(t, h, http.MethodPost, "/api/v1/direction", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantCode != "" {
				if e := decodeError(t, rec); e.Code != tt.wantCode {
					t.Errorf("expected code %s, got %s", tt.wantCode, e.Code)
				}
				return
			}
			if v := decodeView(t, rec); v.Direction != tt.wantDir {
				t.Errorf("expected %s, got %s", tt.wantDir, v.Direction)
			}
		})
	}
}

func TestServer_PostInput(t *testing.T) {
	c := &fakeControls{}
	h := newTestServer(t, c, config.APIConfig{})

	rec := do(t, h, http.MethodPost, "/api/v1/input", `{"amount":"12.5"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if v := decodeView(t, rec); v.Input != "12.5" {
		t.Errorf("expected input 12.5, got %q", v.Input)
	}
}

func TestServer_PostTrigger(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		c := &fakeControls{}
		h := newTestServer(t, c, config.APIConfig{})

		rec := do(t, h, http.MethodPost, "/api/v1/trigger", "")
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", rec.Code)
		}
		if c.triggers != 1 {
			t.Errorf("expected one trigger, got %d", c.triggers)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		c := &fakeControls{triggerErr: apperror.New(apperror.CodeInvalidAmount, apperror.WithContext("0"))}
		h := newTestServer(t, c, config.APIConfig{})

		rec := do(t, h, http.MethodPost, "/api/v1/trigger", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		e := decodeError(t, rec)
		if e.Code != apperror.CodeInvalidAmount || e.Context != "0" {
			t.Errorf("unexpected error %+v", e)
		}
		if e.Timestamp == "" {
			t.Error("expected a timestamp")
		}
	})
}

func TestServer_ClearError(t *testing.T) {
	c := &fakeControls{}
	h := newTestServer(t, c, config.APIConfig{})

	if rec := do(t, h, http.MethodPost, "/api/v1/error/clear", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !c.cleared {
		t.Error("expected ClearError to be called")
	}
}

func TestServer_NotFound(t *testing.T) {
	h := newTestServer(t, &fakeControls{}, config.APIConfig{})

	rec := do(t, h, http.MethodGet, "/api/v1/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != apperror.CodeNotFound {
		t.Errorf("unexpected code %s", e.Code)
	}
}

func TestServer_RateLimit(t *testing.T) {
	h := newTestServer(t, &fakeControls{}, config.APIConfig{RequestsPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rec := do(t, h, http.MethodGet, "/api/v1/view", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := do(t, h, http.MethodGet, "/api/v1/view", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != apperror.CodeRateLimitExceeded {
		t.Errorf("unexpected code %s", e.Code)
	}
}

func TestServer_CORS(t *testing.T) {
	h := newTestServer(t, &fakeControls{}, config.APIConfig{AllowedOrigins: []string{"http://kiosk.local"}})

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"allowed", "http://kiosk.local", "http://kiosk.local"},
		{"denied", "http://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/direction", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("expected allow origin %q, got %q", tt.want, got)
			}
		})
	}
}

func TestServer_StreamView(t *testing.T) {
	c := &fakeControls{}
	srv := httptest.NewServer(newTestServer(t, c, config.APIConfig{PushInterval: 10 * time.Millisecond}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var v app.View
	if err := wsjson.Read(ctx, conn, &v); err != nil {
		t.Fatalf("read initial view: %v", err)
	}
	if v.Input != "" {
		t.Errorf("expected empty input, got %q", v.Input)
	}

	c.SetInput(ctx, "3")
	if err := wsjson.Read(ctx, conn, &v); err != nil {
		t.Fatalf("read pushed view: %v", err)
	}
	if v.Input != "3" {
		t.Errorf("expected pushed input 3, got %q", v.Input)
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

func TestOriginPatterns(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"wildcard", []string{"http://a.local", "*"}, []string{"*"}},
		{"urls to hosts", []string{"http://a.local:3000", "https://b.local"}, []string{"a.local:3000", "b.local"}},
		{"bare hosts", []string{"c.local"}, []string{"c.local"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := originPatterns(tt.in)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
