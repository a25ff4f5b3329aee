package circuitbreaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/fd1az/chswap-kiosk/internal/circuitbreaker"
)

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("test")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour

	var transitions []circuitbreaker.State
	cfg.OnStateChange = func(_ string, _, to circuitbreaker.State) {
		transitions = append(transitions, to)
	}

	cb := circuitbreaker.New[int](cfg)
	boom := errors.New("rpc down")

	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected rpc error, got %v", i, err)
		}
	}

	if cb.State() != circuitbreaker.StateOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	called := false
	_, err := cb.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	if called {
		t.Error("expected call to be short-circuited")
	}
	if !circuitbreaker.IsOpen(err) {
		t.Errorf("expected open-state error, got %v", err)
	}

	if len(transitions) != 1 || transitions[0] != circuitbreaker.StateOpen {
		t.Errorf("expected one transition to open, got %v", transitions)
	}
}

func TestCircuitBreaker_PassesValues(t *testing.T) {
	cb := circuitbreaker.New[string](circuitbreaker.DefaultConfig("values"))

	got, err := cb.Execute(func() (string, error) { return "ok", nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("expected ok, got %s", got)
	}
	if cb.Name() != "values" {
		t.Errorf("expected name values, got %s", cb.Name())
	}
}
